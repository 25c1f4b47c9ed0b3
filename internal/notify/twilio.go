package notify

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
)

// messageCreator is the slice of the Twilio REST API we use.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// Twilio sends WhatsApp template messages through the Content API.
type Twilio struct {
	api  messageCreator
	from string
}

func NewTwilio(accountSID, authToken, from string) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &Twilio{api: client.Api, from: from}
}

func (t *Twilio) Send(ctx context.Context, to, templateID string, vars map[string]string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindNotificationFailed, err, "notification cancelled")
	}
	if templateID == "" {
		return nil, apperr.New(apperr.KindNotificationFailed, "no message template configured")
	}
	toNumber, err := NormalizePhone(to)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotificationFailed, err, "invalid recipient")
	}
	contentVars, err := json.Marshal(vars)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotificationFailed, err, "failed to encode template variables")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(t.from)
	params.SetContentSid(templateID)
	params.SetContentVariables(string(contentVars))

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotificationFailed, err, "whatsapp send failed")
	}

	r := &Receipt{}
	if msg.Sid != nil {
		r.MessageID = *msg.Sid
	}
	if msg.Status != nil {
		r.Status = *msg.Status
	}
	log.Info().Str("to", toNumber).Str("sid", r.MessageID).Str("status", r.Status).Msg("whatsapp sent")
	return r, nil
}

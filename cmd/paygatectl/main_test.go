package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func signatureFrom(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "Signature: "); ok {
			return v
		}
	}
	t.Fatalf("no Signature header in %q", out)
	return ""
}

func TestSignThenVerify(t *testing.T) {
	body := `{"order":{"invoice_number":"INV-1000","amount":50000}}`
	common := []string{"--client-id", "BRN-0001", "--secret", "SK-test", "--request-id", "req-1", "--timestamp", "2024-01-02T03:04:05Z"}

	out, err := run(t, body, append([]string{"sign", "-"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Request-Id: req-1")
	assert.Contains(t, out, "Request-Target: /api/webhook")
	sig := signatureFrom(t, out)
	assert.True(t, strings.HasPrefix(sig, "HMACSHA256="))

	out, err = run(t, body, append([]string{"verify", "-", "--signature", sig}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "signature ok")

	out, err = run(t, body+" ", append([]string{"verify", "-", "--signature", sig}, common...)...)
	require.Error(t, err)
	assert.Contains(t, out, "Digest:")
}

func TestSignRequiresCredentials(t *testing.T) {
	t.Setenv("DOKU_CLIENT_ID", "")
	t.Setenv("DOKU_SECRET_KEY", "")
	_, err := run(t, "{}", "sign", "-")
	require.Error(t, err)
}

package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"iran-payment/internal/infra/logging"
)

func TestWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithTxCode(ctx, "tx-9")
	ctx = logging.WithGateway(ctx, "sadad")

	logging.With(ctx, &base).Info().Msg("verifying")

	line := buf.String()
	for _, want := range []string{
		`"request_id":"req-1"`,
		`"tx_code":"tx-9"`,
		`"gateway":"sadad"`,
		`"verifying"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestWithSkipsAbsentFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := logging.WithRequestID(context.Background(), "")
	logging.With(ctx, &base).Info().Msg("verifying")

	line := buf.String()
	if strings.Contains(line, "request_id") {
		t.Errorf("empty request_id should add no field: %s", line)
	}
	if strings.Contains(line, "tx_code") || strings.Contains(line, "gateway") {
		t.Errorf("unset fields should add nothing: %s", line)
	}
}

package zarinpal

import "iran-payment/internal/domain"

const (
	// codeSessionFailed covers a NOK callback status (user cancelled or the
	// session failed at the gateway).
	codeSessionFailed = -51
	// codeInvalidAuthority covers a callback authority that does not match
	// the one on record.
	codeInvalidAuthority = -54
)

// resultCodes maps ZarinPal REST v4 codes into the normalized taxonomy.
// 101 means "already verified" and is treated as success, matching the
// gateway's idempotent verify semantics.
var resultCodes = map[int64]domain.ErrorKind{
	100:                  domain.KindSuccess,
	101:                  domain.KindSuccess,
	-9:                   domain.KindInvalidRequest,
	-10:                  domain.KindAuthenticationFailed,
	-11:                  domain.KindAuthenticationFailed,
	-12:                  domain.KindInvalidRequest,
	-33:                  domain.KindInvalidRequest,
	-50:                  domain.KindAmountMismatch,
	codeSessionFailed:    domain.KindInvalidRequest,
	codeInvalidAuthority: domain.KindTokenExpired,
}

var codeMessages = map[int64]string{
	-9:                   "validation error",
	-10:                  "invalid merchant id or ip",
	-11:                  "merchant is not active",
	-12:                  "too many attempts",
	-33:                  "amount is out of the accepted range",
	-50:                  "paid amount differs from the requested amount",
	codeSessionFailed:    "payment session failed or was cancelled",
	codeInvalidAuthority: "authority is invalid or expired",
}

func normalize(code int64, description string) error {
	if description == "" {
		description = codeMessages[code]
	}
	return domain.NormalizeCode(gatewayName, resultCodes, code, description)
}

package sadad

import "iran-payment/internal/domain"

// codeTokenMismatch is the local result code used when the callback token is
// absent or does not match the one on record.
const codeTokenMismatch = -1

// codeAmountMismatch is raised when the bank-settled amount differs from the
// authorized amount, per the IPG advice documentation.
const codeAmountMismatch = 1101

// resultCodes maps Sadad IPG native result codes into the normalized
// taxonomy. Codes absent here fall through to KindUnknown with the raw code
// preserved.
var resultCodes = map[int64]domain.ErrorKind{
	0:                  domain.KindSuccess,
	3:                  domain.KindInvalidRequest,
	23:                 domain.KindAuthenticationFailed,
	51:                 domain.KindInsufficientFunds,
	58:                 domain.KindInvalidRequest,
	61:                 domain.KindInvalidRequest,
	1001:               domain.KindInvalidRequest,
	1011:               domain.KindDuplicateOrder,
	1012:               domain.KindAuthenticationFailed,
	1015:               domain.KindTokenExpired,
	codeAmountMismatch: domain.KindAmountMismatch,
	codeTokenMismatch:  domain.KindInvalidRequest,
}

// codeMessages supplies a description when the bank response carries none.
var codeMessages = map[int64]string{
	3:                  "transaction declined by the issuer",
	23:                 "security violation",
	51:                 "insufficient funds",
	58:                 "transaction not permitted for this terminal",
	61:                 "amount exceeds the permitted limit",
	1001:               "invalid request parameters",
	1011:               "duplicate order id",
	1012:               "invalid merchant information",
	1015:               "token not found or expired",
	codeAmountMismatch: "settled amount does not match the purchase amount",
	codeTokenMismatch:  "callback token missing or does not match the record",
}

func normalize(code int64, description string) error {
	if description == "" {
		description = codeMessages[code]
	}
	return domain.NormalizeCode(gatewayName, resultCodes, code, description)
}

package gateway

// Response codes carried in vnp_ResponseCode on both channels.
const ResponseCodeSuccess = "00"

var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Amount deducted, transaction flagged as suspicious",
	"09": "Card or account not registered for internet banking",
	"10": "Card or account authentication failed more than 3 times",
	"11": "Payment wait window expired",
	"12": "Card or account is locked",
	"13": "Wrong OTP entered too many times",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient account balance",
	"65": "Daily transaction limit exceeded",
	"70": "Invalid signature",
	"75": "Issuing bank under maintenance",
	"79": "Wrong payment password entered too many times",
	"99": "Other error",
}

// ResponseMessage maps a gateway response code to its documented meaning.
func ResponseMessage(code string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	return "Unknown error (code: " + code + ")"
}

// IPN acknowledgement codes. The gateway redelivers an IPN until it gets
// one of the documented codes back, so these values are part of the wire
// contract, not internal statuses.
const (
	IPNAccepted         = "00"
	IPNOrderNotFound    = "01"
	IPNAlreadyConfirmed = "02"
	IPNInvalidAmount    = "04"
	IPNInvalidSignature = "97"
	IPNInternalError    = "99"
)

type IPNAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

func AckAccepted() IPNAck {
	return IPNAck{RspCode: IPNAccepted, Message: "Confirm Success"}
}

func AckOrderNotFound() IPNAck {
	return IPNAck{RspCode: IPNOrderNotFound, Message: "Order not found"}
}

func AckAlreadyConfirmed() IPNAck {
	return IPNAck{RspCode: IPNAlreadyConfirmed, Message: "Order already confirmed"}
}

func AckInvalidAmount() IPNAck {
	return IPNAck{RspCode: IPNInvalidAmount, Message: "Invalid amount"}
}

func AckInvalidSignature() IPNAck {
	return IPNAck{RspCode: IPNInvalidSignature, Message: "Fail checksum"}
}

func AckInternalError() IPNAck {
	return IPNAck{RspCode: IPNInternalError, Message: "Internal error"}
}

package port

type ResultSender interface {
	// SendResult delivers the encoded image to the caller.
	SendResult(encoded string) error
	// NotifyAndReturnError reports err to the caller and returns it unchanged.
	NotifyAndReturnError(err error) error
}

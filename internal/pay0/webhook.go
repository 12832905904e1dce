package pay0

import (
	"net/url"
	"strings"
)

// Notification is the form Pay0 posts to the webhook. remark1 carries our user id.
type Notification struct {
	OrderID        string
	Status         string
	Amount         string
	UserRef        string
	Remark2        string
	CustomerMobile string
}

func ParseNotification(form url.Values) Notification {
	return Notification{
		OrderID:        strings.TrimSpace(form.Get("order_id")),
		Status:         NormalizeStatus(form.Get("status")),
		Amount:         strings.TrimSpace(form.Get("amount")),
		UserRef:        strings.TrimSpace(form.Get("remark1")),
		Remark2:        strings.TrimSpace(form.Get("remark2")),
		CustomerMobile: strings.TrimSpace(form.Get("customer_mobile")),
	}
}

package enums

// NotificationKind names the template the external sender should render.
type NotificationKind string

const (
	NotificationOrderCreated       NotificationKind = "order_created"
	NotificationOrderStatusChanged NotificationKind = "order_status_changed"
	NotificationRefundIssued       NotificationKind = "refund_issued"
	NotificationPointsWarning      NotificationKind = "points_warning"
	NotificationAccountSuspended   NotificationKind = "account_suspended"
)

var validNotificationKinds = []NotificationKind{
	NotificationOrderCreated,
	NotificationOrderStatusChanged,
	NotificationRefundIssued,
	NotificationPointsWarning,
	NotificationAccountSuspended,
}

func (n NotificationKind) IsValid() bool {
	return known(n, validNotificationKinds)
}

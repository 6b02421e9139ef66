package email

const (
	subjectDealStatusFmt       = "Your loan application is now %s"
	subjectCallbackReminderFmt = "Reminder: callback in %s"
)

package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanflow_backend/internal/notification/inapp"
	"loanflow_backend/internal/notification/prefs"
	"loanflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeInApp struct {
	sent    []inapp.SendParams
	sendErr error
	recent  bool
}

func (f *fakeInApp) Send(_ context.Context, p inapp.SendParams) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeInApp) HasRecentForDeal(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (bool, error) {
	return f.recent, nil
}

type fakePrefs struct {
	prefs prefs.Preferences
	err   error
	calls int
}

func (f *fakePrefs) GetByUserID(_ context.Context, userID uuid.UUID) (prefs.Preferences, error) {
	f.calls++
	if f.err != nil {
		return prefs.Preferences{}, f.err
	}
	if f.prefs.UserID == uuid.Nil {
		return prefs.Defaults(userID), nil
	}
	return f.prefs, nil
}

type fakeContacts struct {
	contact Contact
	err     error
}

func (f *fakeContacts) Resolve(_ context.Context, userID uuid.UUID) (Contact, error) {
	if f.err != nil {
		return Contact{}, f.err
	}
	c := f.contact
	c.UserID = userID
	return c, nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) SendNotificationEmail(_ context.Context, toEmail, _, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, toEmail)
	return nil
}

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(_ context.Context, phone, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone)
	return nil
}

func newDispatchService(inApp *fakeInApp, pr *fakePrefs, contacts *fakeContacts, mail *fakeEmail, sms *fakeSMS) *Service {
	svc := NewService(inApp, pr, contacts, logger.New("development"))
	if mail != nil {
		svc.SetEmailSender(mail)
	}
	if sms != nil {
		svc.SetSMSSender(sms)
	}
	return svc
}

func fullContact() Contact {
	return Contact{FirstName: "Nora", LastName: "de Wit", Email: "nora@example.com", Phone: "+31612345678"}
}

func TestDispatchAlwaysWritesInApp(t *testing.T) {
	inApp := &fakeInApp{}
	pr := &fakePrefs{}
	svc := newDispatchService(inApp, pr, &fakeContacts{contact: fullContact()}, &fakeEmail{}, &fakeSMS{})
	userID := uuid.New()

	err := svc.Dispatch(context.Background(), DispatchParams{
		UserID:  userID,
		Title:   "Heads up",
		Message: "Something happened",
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(inApp.sent) != 1 {
		t.Fatalf("expected 1 in-app row, got %d", len(inApp.sent))
	}
	if inApp.sent[0].Category != CategoryInfo {
		t.Fatalf("empty category should default to info, got %s", inApp.sent[0].Category)
	}
	if pr.calls != 0 {
		t.Fatal("no channel request means no preference lookup")
	}
}

func TestDispatchInAppFailureIsFatal(t *testing.T) {
	inApp := &fakeInApp{sendErr: errors.New("insert failed")}
	svc := newDispatchService(inApp, &fakePrefs{}, &fakeContacts{contact: fullContact()}, &fakeEmail{}, &fakeSMS{})

	if err := svc.Dispatch(context.Background(), DispatchParams{UserID: uuid.New(), Title: "x", Message: "y"}); err == nil {
		t.Fatal("in-app failure must fail the dispatch")
	}
}

func TestDispatchEmailFollowsPreferences(t *testing.T) {
	tests := []struct {
		name     string
		prefs    prefs.Preferences
		category string
		wantSent bool
	}{
		{
			name:     "defaults allow deal status email",
			category: CategoryDealStatus,
			wantSent: true,
		},
		{
			name:     "email disabled",
			prefs:    prefs.Preferences{UserID: uuid.New(), EmailEnabled: false, DealStatusUpdates: true},
			category: CategoryDealStatus,
			wantSent: false,
		},
		{
			name:     "category opted out",
			prefs:    prefs.Preferences{UserID: uuid.New(), EmailEnabled: true, DealStatusUpdates: false},
			category: CategoryDealStatus,
			wantSent: false,
		},
		{
			name:     "task reminder gate",
			prefs:    prefs.Preferences{UserID: uuid.New(), EmailEnabled: true, TaskReminders: false},
			category: CategoryIdleDealWarning,
			wantSent: false,
		},
		{
			name:     "unknown category is operational",
			prefs:    prefs.Preferences{UserID: uuid.New(), EmailEnabled: true},
			category: "maintenance",
			wantSent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &fakeEmail{}
			svc := newDispatchService(&fakeInApp{}, &fakePrefs{prefs: tt.prefs}, &fakeContacts{contact: fullContact()}, mail, nil)

			err := svc.Dispatch(context.Background(), DispatchParams{
				UserID:   uuid.New(),
				Title:    "t",
				Message:  "m",
				Category: tt.category,
				Email:    true,
			})
			if err != nil {
				t.Fatalf("Dispatch returned error: %v", err)
			}
			if got := len(mail.sent) == 1; got != tt.wantSent {
				t.Fatalf("email sent = %v, want %v", got, tt.wantSent)
			}
		})
	}
}

func TestDispatchEmailFailureIsSwallowed(t *testing.T) {
	inApp := &fakeInApp{}
	mail := &fakeEmail{err: errors.New("smtp rejected")}
	svc := newDispatchService(inApp, &fakePrefs{}, &fakeContacts{contact: fullContact()}, mail, nil)

	err := svc.Dispatch(context.Background(), DispatchParams{
		UserID: uuid.New(), Title: "t", Message: "m", Email: true,
	})
	if err != nil {
		t.Fatalf("email failure must not fail the dispatch: %v", err)
	}
	if len(inApp.sent) != 1 {
		t.Fatal("in-app write should have happened before the email attempt")
	}
}

func TestDispatchSMSRequiresPhoneAndPreference(t *testing.T) {
	sms := &fakeSMS{}
	svc := newDispatchService(&fakeInApp{}, &fakePrefs{}, &fakeContacts{contact: fullContact()}, nil, sms)

	err := svc.Dispatch(context.Background(), DispatchParams{
		UserID: uuid.New(), Title: "t", Message: "m", SMS: true,
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(sms.sent) != 1 || sms.sent[0] != "+31612345678" {
		t.Fatalf("sms should go to the contact phone: %v", sms.sent)
	}

	// No phone on file: the SMS is silently skipped.
	sms2 := &fakeSMS{}
	svc2 := newDispatchService(&fakeInApp{}, &fakePrefs{}, &fakeContacts{contact: Contact{Email: "a@b.c"}}, nil, sms2)
	if err := svc2.Dispatch(context.Background(), DispatchParams{UserID: uuid.New(), Title: "t", Message: "m", SMS: true}); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if len(sms2.sent) != 0 {
		t.Fatal("no phone means no SMS")
	}
}

func TestDispatchMissingContactIsSwallowed(t *testing.T) {
	inApp := &fakeInApp{}
	svc := newDispatchService(inApp, &fakePrefs{}, &fakeContacts{err: errors.New("profile missing")}, &fakeEmail{}, nil)

	err := svc.Dispatch(context.Background(), DispatchParams{
		UserID: uuid.New(), Title: "t", Message: "m", Email: true,
	})
	if err != nil {
		t.Fatalf("contact resolution failure must not fail the dispatch: %v", err)
	}
	if len(inApp.sent) != 1 {
		t.Fatal("in-app write should still land")
	}
}

func TestContactFullName(t *testing.T) {
	tests := []struct {
		contact Contact
		want    string
	}{
		{Contact{FirstName: "Nora", LastName: "de Wit"}, "Nora de Wit"},
		{Contact{FirstName: "Nora"}, "Nora"},
		{Contact{LastName: "de Wit"}, "de Wit"},
		{Contact{}, "there"},
	}
	for _, tt := range tests {
		if got := tt.contact.FullName(); got != tt.want {
			t.Fatalf("FullName() = %q, want %q", got, tt.want)
		}
	}
}

func TestPrefsDefaults(t *testing.T) {
	userID := uuid.New()
	d := prefs.Defaults(userID)
	if !d.EmailEnabled || !d.SMSEnabled || !d.DealStatusUpdates || !d.TaskReminders {
		t.Fatalf("defaults should enable operational channels: %+v", d)
	}
	if d.MarketingMessages {
		t.Fatal("marketing defaults to off")
	}
}

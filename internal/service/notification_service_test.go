package service

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/ducmanh-ng/Invigilo/internal/model"
	"gorm.io/gorm"
)

func notificationFixture() (NotificationService, *fakeNotificationRepo) {
	users := newFakeUserRepo(
		&model.User{ID: 1, Username: "root", Role: model.RoleAdmin},
		&model.User{ID: 2, Username: "proctor", Role: model.RoleStaff},
		&model.User{ID: 3, Username: "lecturer", Role: model.RoleLecturer},
		&model.User{ID: 42, Username: "alice", Role: model.RoleStudent},
	)
	exams := newFakeExamRepo(&model.Exam{ID: 7, Title: "Final Exam", CreatorID: 3})
	notificationRepo := newFakeNotificationRepo()
	return NewNotificationService(notificationRepo, users, exams), notificationRepo
}

func sampleAlert() *model.Alert {
	return &model.Alert{
		ID:          1,
		ExamID:      7,
		ExamName:    "Final Exam",
		StudentID:   42,
		StudentName: "alice",
		AlertType:   ViolationFullscreenExit,
		Severity:    model.SeverityCritical,
		Description: "Student exited fullscreen mode 1 time(s).",
		Status:      model.AlertPending,
	}
}

func recipientIDs(notifications []model.Notification) []uint {
	ids := make([]uint, len(notifications))
	for i, n := range notifications {
		ids[i] = n.UserID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestNotifyAlertReachesStaffAndLecturer(t *testing.T) {
	svc, _ := notificationFixture()

	created, err := svc.NotifyAlert(sampleAlert())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := recipientIDs(created)
	want := []uint{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected recipients %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected recipients %v, got %v", want, got)
		}
	}

	for _, n := range created {
		if n.Type != model.NotificationTypeProctoringAlert {
			t.Errorf("wrong type: %s", n.Type)
		}
		if n.Read {
			t.Errorf("notifications start unread")
		}
		if !strings.Contains(n.Message, "CRITICAL") || !strings.Contains(n.Message, "alice") {
			t.Errorf("message misses key facts: %q", n.Message)
		}
	}
}

func TestNotifyAlertDeduplicatesStaffLecturer(t *testing.T) {
	// The exam creator is also staff; they get one notification, not two.
	users := newFakeUserRepo(
		&model.User{ID: 2, Username: "proctor", Role: model.RoleStaff},
	)
	exams := newFakeExamRepo(&model.Exam{ID: 7, Title: "Final Exam", CreatorID: 2})
	svc := NewNotificationService(newFakeNotificationRepo(), users, exams)

	created, err := svc.NotifyAlert(sampleAlert())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0].UserID != 2 {
		t.Errorf("expected single deduplicated recipient, got %v", recipientIDs(created))
	}
}

func TestNotifyAlertUnknownExamStillReachesStaff(t *testing.T) {
	users := newFakeUserRepo(&model.User{ID: 2, Username: "proctor", Role: model.RoleStaff})
	svc := NewNotificationService(newFakeNotificationRepo(), users, newFakeExamRepo())

	created, err := svc.NotifyAlert(sampleAlert())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0].UserID != 2 {
		t.Errorf("staff must be reached even without the exam row, got %v", recipientIDs(created))
	}
}

func TestNotifyAlertToleratesPartialFailure(t *testing.T) {
	svc, notificationRepo := notificationFixture()
	notificationRepo.failForUser = 2

	created, err := svc.NotifyAlert(sampleAlert())
	if err != nil {
		t.Fatalf("partial failure must not surface: %v", err)
	}
	got := recipientIDs(created)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("remaining recipients must still be served, got %v", got)
	}
}

func TestListForUserUnreadFilter(t *testing.T) {
	svc, _ := notificationFixture()
	if _, err := svc.NotifyAlert(sampleAlert()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := svc.ListForUser(2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one notification for user 2, got %d", len(all))
	}

	if err := svc.MarkRead(all[0].ID, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unread, err := svc.ListForUser(2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("read notifications must drop out of the unread view")
	}
}

func TestMarkReadScopedToOwner(t *testing.T) {
	svc, _ := notificationFixture()
	if _, err := svc.NotifyAlert(sampleAlert()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, err := svc.ListForUser(2, false)
	if err != nil || len(mine) != 1 {
		t.Fatalf("setup: %v, %d", err, len(mine))
	}

	err = svc.MarkRead(mine[0].ID, 3)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("another user's acknowledgement must not land, got %v", err)
	}
}

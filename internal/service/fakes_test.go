package service

import (
	"sync"
	"time"

	"github.com/ducmanh-ng/Invigilo/internal/dto"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/ducmanh-ng/Invigilo/internal/repository"
	"github.com/ducmanh-ng/Invigilo/internal/ws"
	"gorm.io/gorm"
)

// fakeAttemptRepo is an in-memory AttemptRepository.
type fakeAttemptRepo struct {
	mu            sync.Mutex
	attempts      map[uint]*model.ExamAttempt
	auditEvents   []model.AttemptEvent
	finalizeErr   error
	finalizeCalls int
}

func newFakeAttemptRepo(attempts ...*model.ExamAttempt) *fakeAttemptRepo {
	repo := &fakeAttemptRepo{attempts: make(map[uint]*model.ExamAttempt)}
	for _, a := range attempts {
		repo.attempts[a.ID] = a
	}
	return repo
}

func (r *fakeAttemptRepo) Create(a *model.ExamAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[a.ID] = a
	return nil
}

func (r *fakeAttemptRepo) FindByID(id uint) (*model.ExamAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAttemptRepo) FindByIDWithDetails(id uint) (*model.ExamAttempt, error) {
	return r.FindByID(id)
}

func (r *fakeAttemptRepo) Update(a *model.ExamAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[a.ID] = a
	return nil
}

func (r *fakeAttemptRepo) UpdateScore(id uint, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[id]; ok {
		a.Score = &score
	}
	return nil
}

func (r *fakeAttemptRepo) SetAgentToken(id uint, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[id]; ok {
		a.AgentToken = &token
	}
	return nil
}

func (r *fakeAttemptRepo) Finish(id uint, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[id]; ok {
		a.FinishedAt = &finishedAt
	}
	return nil
}

func (r *fakeAttemptRepo) FinalizeWithAudit(attempt *model.ExamAttempt, audit *model.AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeCalls++
	if r.finalizeErr != nil {
		return r.finalizeErr
	}
	stored, ok := r.attempts[attempt.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Score = attempt.Score
	stored.FinishedAt = attempt.FinishedAt
	stored.Terminated = attempt.Terminated
	stored.TerminationReason = attempt.TerminationReason
	r.auditEvents = append(r.auditEvents, *audit)
	return nil
}

// fakeEventRepo is an in-memory AttemptEventRepository.
type fakeEventRepo struct {
	mu     sync.Mutex
	nextID uint
	events map[uint][]model.AttemptEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uint][]model.AttemptEvent)}
}

func (r *fakeEventRepo) Create(ev *model.AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ev.ID = r.nextID
	ev.CreatedAt = time.Now()
	r.events[ev.AttemptID] = append(r.events[ev.AttemptID], *ev)
	return nil
}

func (r *fakeEventRepo) FindAllByAttemptID(attemptID uint) ([]model.AttemptEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.AttemptEvent, len(r.events[attemptID]))
	copy(out, r.events[attemptID])
	return out, nil
}

// fakeAlertRepo is an in-memory AlertRepository.
type fakeAlertRepo struct {
	mu        sync.Mutex
	nextID    uint
	alerts    map[uint]*model.Alert
	updateErr error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[uint]*model.Alert)}
}

func (r *fakeAlertRepo) Create(alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	alert.ID = r.nextID
	alert.CreatedAt = time.Now()
	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *fakeAlertRepo) Update(alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *fakeAlertRepo) FindByID(id uint) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *alert
	return &copied, nil
}

func (r *fakeAlertRepo) FindOpenByExamAndStudent(examID, studentID uint) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alert := range r.alerts {
		if alert.ExamID == examID && alert.StudentID == studentID && !alert.Status.Terminal() {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAlertRepo) FindAll(filter repository.AlertFilter) ([]model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Alert
	for _, alert := range r.alerts {
		if filter.Status != nil && alert.Status != *filter.Status {
			continue
		}
		if filter.Severity != nil && alert.Severity != *filter.Severity {
			continue
		}
		if filter.ExamID != nil && alert.ExamID != *filter.ExamID {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (r *fakeAlertRepo) CountBySeverity(examID uint) (map[model.Severity]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[model.Severity]int64)
	for _, alert := range r.alerts {
		if alert.ExamID == examID {
			counts[alert.Severity]++
		}
	}
	return counts, nil
}

func (r *fakeAlertRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// fakePublisher records everything published to the live transport.
type fakePublisher struct {
	mu          sync.Mutex
	attemptMsgs map[uint][]ws.Message
	allMsgs     []ws.Message
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{attemptMsgs: make(map[uint][]ws.Message)}
}

func (p *fakePublisher) PublishAttempt(attemptID uint, msg ws.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attemptMsgs[attemptID] = append(p.attemptMsgs[attemptID], msg)
}

func (p *fakePublisher) PublishAll(msg ws.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allMsgs = append(p.allMsgs, msg)
}

func (p *fakePublisher) messagesOfType(attemptID uint, messageType string) []ws.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ws.Message
	for _, msg := range p.attemptMsgs[attemptID] {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

// fakeNotifier is a NotificationService capturing fan-out calls.
type fakeNotifier struct {
	mu     sync.Mutex
	alerts []*model.Alert
}

func (n *fakeNotifier) NotifyAlert(alert *model.Alert) ([]model.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil, nil
}

func (n *fakeNotifier) ListForUser(userID uint, unreadOnly bool) ([]dto.NotificationResponse, error) {
	return nil, nil
}

func (n *fakeNotifier) MarkRead(notificationID, userID uint) error { return nil }

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	users map[uint]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[uint]*model.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) FindByID(id uint) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindStaff() ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if u.IsStaff() {
			out = append(out, *u)
		}
	}
	return out, nil
}

// fakeExamRepo is an in-memory ExamRepository.
type fakeExamRepo struct {
	exams map[uint]*model.Exam
}

func newFakeExamRepo(exams ...*model.Exam) *fakeExamRepo {
	repo := &fakeExamRepo{exams: make(map[uint]*model.Exam)}
	for _, e := range exams {
		repo.exams[e.ID] = e
	}
	return repo
}

func (r *fakeExamRepo) Create(exam *model.Exam) error {
	r.exams[exam.ID] = exam
	return nil
}

func (r *fakeExamRepo) FindByID(id uint) (*model.Exam, error) {
	e, ok := r.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

// fakeNotificationRepo is an in-memory NotificationRepository.
type fakeNotificationRepo struct {
	mu            sync.Mutex
	nextID        uint
	notifications []model.Notification
	failForUser   uint
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failForUser != 0 && n.UserID == r.failForUser {
		return gorm.ErrInvalidData
	}
	r.nextID++
	n.ID = r.nextID
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) FindAllByUser(userID uint, unreadOnly bool) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(id, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].UserID == userID {
			r.notifications[i].Read = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

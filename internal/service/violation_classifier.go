package service

import (
	"fmt"
	"strings"

	"github.com/ducmanh-ng/Invigilo/config"
	"github.com/ducmanh-ng/Invigilo/internal/model"
	"github.com/goccy/go-json"
)

// Violation types, in rule-table order.
const (
	ViolationFullscreenExit    = "FULLSCREEN_EXIT"
	ViolationScreenshotAttempt = "SCREENSHOT_ATTEMPT"
	ViolationTabSwitch         = "TAB_SWITCH"
	ViolationWindowBlur        = "WINDOW_BLUR"
	ViolationWindowHidden      = "WINDOW_HIDDEN"
	ViolationExcessiveCopy     = "EXCESSIVE_COPY"
	ViolationExcessivePaste    = "EXCESSIVE_PASTE"
	ViolationWindowSwitch      = "WINDOW_SWITCH"
	ViolationUnauthorizedApp   = "UNAUTHORIZED_APP"
	ViolationNetworkAccess     = "NETWORK_ACCESS"
)

// Violation is the transient output of classification; it feeds alert
// creation and is never persisted directly.
type Violation struct {
	Type        string
	Severity    model.Severity
	Description string
	Weight      int
	Count       int
}

// ViolationClassifier maps an attempt's raw event log to severity-ranked
// violations. Pure: identical input yields identical output, no side effects.
type ViolationClassifier interface {
	Classify(events []model.AttemptEvent) []Violation
}

// defaultDeniedApps covers browsers, chat apps and the system tools the
// native agent blocks during an exam.
var defaultDeniedApps = []string{
	"chrome", "firefox", "msedge", "edge", "opera", "brave", "safari",
	"discord", "telegram", "slack", "whatsapp", "messenger", "zalo", "skype", "teams",
	"taskmgr", "regedit", "cmd", "powershell",
}

type violationClassifier struct {
	deniedApps []string
}

func NewViolationClassifier(cfg *config.Config) ViolationClassifier {
	denied := defaultDeniedApps
	if len(cfg.Proctoring.DeniedApps) > 0 {
		denied = cfg.Proctoring.DeniedApps
	}
	lowered := make([]string, len(denied))
	for i, app := range denied {
		lowered[i] = strings.ToLower(app)
	}
	return &violationClassifier{deniedApps: lowered}
}

// eventTally holds per-type counters derived from one scan of the log.
type eventTally struct {
	fullscreenExit  int
	shortcutBlocked int
	tabSwitch       int
	blur            int
	hidden          int
	copyEvents      int
	pasteEvents     int
	windowSwitch    int
	unauthorizedApp int
	networkAccess   int
}

// thresholdRule is one row of the fixed classification table. Rules are
// evaluated in declaration order so ties break deterministically.
type thresholdRule struct {
	violationType string
	severity      model.Severity
	threshold     int
	weight        int
	count         func(t *eventTally) int
	describe      func(n int) string
}

var thresholdRules = []thresholdRule{
	{
		violationType: ViolationFullscreenExit,
		severity:      model.SeverityCritical,
		threshold:     1,
		weight:        10,
		count:         func(t *eventTally) int { return t.fullscreenExit },
		describe: func(n int) string {
			return fmt.Sprintf("Student exited fullscreen mode %d time(s), indicating possible exam window closure or switching to other applications.", n)
		},
	},
	{
		violationType: ViolationScreenshotAttempt,
		severity:      model.SeverityHigh,
		threshold:     1,
		weight:        8,
		count:         func(t *eventTally) int { return t.shortcutBlocked },
		describe: func(n int) string {
			return fmt.Sprintf("Attempted to use screenshot or cheating shortcuts %d time(s).", n)
		},
	},
	{
		violationType: ViolationTabSwitch,
		severity:      model.SeverityMedium,
		threshold:     3,
		weight:        5,
		count:         func(t *eventTally) int { return t.tabSwitch },
		describe: func(n int) string {
			return fmt.Sprintf("Switched between windows/tabs %d time(s).", n)
		},
	},
	{
		violationType: ViolationWindowBlur,
		severity:      model.SeverityMedium,
		threshold:     5,
		weight:        4,
		count:         func(t *eventTally) int { return t.blur },
		describe: func(n int) string {
			return fmt.Sprintf("Exam window lost focus %d time(s).", n)
		},
	},
	{
		violationType: ViolationWindowHidden,
		severity:      model.SeverityMedium,
		threshold:     3,
		weight:        4,
		count:         func(t *eventTally) int { return t.hidden },
		describe: func(n int) string {
			return fmt.Sprintf("Exam window was hidden or minimized %d time(s).", n)
		},
	},
	{
		violationType: ViolationExcessiveCopy,
		severity:      model.SeverityHigh,
		threshold:     5,
		weight:        7,
		count:         func(t *eventTally) int { return t.copyEvents },
		describe: func(n int) string {
			return fmt.Sprintf("Copied exam content %d time(s).", n)
		},
	},
	{
		violationType: ViolationExcessivePaste,
		severity:      model.SeverityHigh,
		threshold:     5,
		weight:        7,
		count:         func(t *eventTally) int { return t.pasteEvents },
		describe: func(n int) string {
			return fmt.Sprintf("Pasted external content %d time(s).", n)
		},
	},
	{
		violationType: ViolationWindowSwitch,
		severity:      model.SeverityMedium,
		threshold:     10,
		weight:        4,
		count:         func(t *eventTally) int { return t.windowSwitch },
		describe: func(n int) string {
			return fmt.Sprintf("Switched application windows %d time(s).", n)
		},
	},
	{
		violationType: ViolationUnauthorizedApp,
		severity:      model.SeverityCritical,
		threshold:     1,
		weight:        10,
		count:         func(t *eventTally) int { return t.unauthorizedApp },
		describe: func(n int) string {
			return fmt.Sprintf("Opened an unauthorized application %d time(s) during the exam.", n)
		},
	},
	{
		violationType: ViolationNetworkAccess,
		severity:      model.SeverityHigh,
		threshold:     3,
		weight:        8,
		count:         func(t *eventTally) int { return t.networkAccess },
		describe: func(n int) string {
			return fmt.Sprintf("Unexpected network access detected %d time(s).", n)
		},
	},
}

func (c *violationClassifier) Classify(events []model.AttemptEvent) []Violation {
	tally := c.tallyEvents(events)

	var violations []Violation
	for _, rule := range thresholdRules {
		n := rule.count(tally)
		if n >= rule.threshold {
			violations = append(violations, Violation{
				Type:        rule.violationType,
				Severity:    rule.severity,
				Description: rule.describe(n),
				Weight:      rule.weight,
				Count:       n,
			})
		}
	}
	return violations
}

func (c *violationClassifier) tallyEvents(events []model.AttemptEvent) *eventTally {
	tally := &eventTally{}
	for i, ev := range events {
		name := strings.ToLower(ev.Event)
		switch {
		case strings.Contains(name, "fullscreen") && (strings.Contains(name, "exit") || strings.Contains(name, "change")):
			tally.fullscreenExit++
		case name == "forced_exit":
			tally.fullscreenExit++
		}
		if strings.Contains(name, "shortcut") && strings.Contains(name, "blocked") {
			tally.shortcutBlocked++
		} else if strings.Contains(name, "screenshot") {
			tally.shortcutBlocked++
		}
		if strings.Contains(name, "blur") {
			tally.blur++
		}
		if strings.Contains(name, "hidden") {
			tally.hidden++
		}
		if strings.Contains(name, "copy") {
			tally.copyEvents++
		}
		if strings.Contains(name, "paste") {
			tally.pasteEvents++
		}
		if strings.Contains(name, "window_switch") {
			tally.windowSwitch++
		}
		if strings.Contains(name, "network") {
			tally.networkAccess++
		}
		if strings.Contains(name, "unauthorized_app") && c.deniedAppEvent(ev) {
			tally.unauthorizedApp++
		}
		// Blur immediately followed by focus is one tab-switch cycle.
		if i+1 < len(events) {
			next := strings.ToLower(events[i+1].Event)
			if strings.Contains(name, "blur") && strings.Contains(next, "focus") {
				tally.tabSwitch++
			}
		}
	}
	return tally
}

// deniedAppEvent checks the reported app name against the deny list. Events
// with no recognizable name count as well: the producer already flagged them.
func (c *violationClassifier) deniedAppEvent(ev model.AttemptEvent) bool {
	name := appName(ev)
	if name == "" {
		return true
	}
	name = strings.ToLower(name)
	for _, denied := range c.deniedApps {
		if strings.Contains(name, denied) {
			return true
		}
	}
	return false
}

func appName(ev model.AttemptEvent) string {
	if len(ev.Payload) == 0 {
		return ""
	}
	var data map[string]interface{}
	if err := json.Unmarshal(ev.Payload, &data); err != nil {
		return ""
	}
	for _, key := range []string{"app", "process", "name"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

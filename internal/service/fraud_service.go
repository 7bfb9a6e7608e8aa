package service

import (
	"strings"
	"sync"
	"time"

	"fintrack/internal/metrics"
	"fintrack/internal/models"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Rule names. High value consults its rule's threshold; the other checks
// carry their parameters in code and the rule entries exist for reporting
// and the enabled switch.
const (
	RuleHighValue       = "High Value Transaction"
	RuleRapid           = "Rapid Transactions"
	RuleUnusualLocation = "Unusual Location"
	RuleUnusualTime     = "Unusual Time"
)

// FraudRule is one tunable surveillance rule.
type FraudRule struct {
	Name      string          `json:"name"`
	Threshold decimal.Decimal `json:"threshold"`
	Enabled   bool            `json:"enabled"`
}

// AccountProfile holds rolling per-account statistics used to contextualize
// anomaly checks. AverageAmount is a pairwise blend of the previous average
// and each new amount, not a cumulative mean; the decay behavior of that
// blend is load-bearing for rule tuning, so it stays.
type AccountProfile struct {
	AccountID        int64           `json:"account_id"`
	AverageAmount    decimal.Decimal `json:"average_amount"`
	MaxAmount        decimal.Decimal `json:"max_amount"`
	CommonLocations  []string        `json:"common_locations"`
	TransactionCount int             `json:"transaction_count"`
}

// Alerter delivers fraud notifications. Delivery is fire-and-forget; the
// implementation must not block analysis on transport failures.
type Alerter interface {
	SendFraudAlert(txID int64, amount decimal.Decimal, location string)
}

// FraudReport aggregates surveillance counters for reporting endpoints.
type FraudReport struct {
	TotalFlagged int            `json:"total_flagged"`
	RuleTriggers map[string]int `json:"rule_triggers"`
	Rules        []FraudRule    `json:"rules"`
	Flagged      []int64        `json:"flagged_transaction_ids"`
}

// FraudService evaluates completed transactions against the rule set,
// maintains behavioral profiles, and runs a periodic background sweep over
// the flagged collection. All mutable state sits behind one service mutex;
// the service never touches an account lock, which keeps the overall lock
// hierarchy flat.
type FraudService struct {
	log       *logrus.Logger
	alerter   Alerter            // optional, may be nil
	collector *metrics.Collector // optional, may be nil
	interval  time.Duration

	mu         sync.Mutex
	rules      []*FraudRule
	profiles   map[int64]*AccountProfile
	flagged    []*models.Transaction
	recognized []string
	triggers   map[string]int

	sched   *cron.Cron
	started bool
}

// defaultRecognizedLocations seeds the unusual-location check until an
// advisory feed replaces it.
func defaultRecognizedLocations() []string {
	return []string{"New York", "Chicago", "Los Angeles", "Boston"}
}

// NewFraudService initializes the worker with the default rule set. alerter
// and collector may be nil; interval governs the background sweep.
func NewFraudService(log *logrus.Logger, alerter Alerter, collector *metrics.Collector, interval time.Duration) *FraudService {
	return &FraudService{
		log:       log,
		alerter:   alerter,
		collector: collector,
		interval:  interval,
		rules: []*FraudRule{
			{Name: RuleHighValue, Threshold: decimal.NewFromInt(5000), Enabled: true},
			{Name: RuleRapid, Threshold: decimal.NewFromInt(10), Enabled: true},
			{Name: RuleUnusualLocation, Threshold: decimal.NewFromInt(1), Enabled: true},
		},
		profiles:   make(map[int64]*AccountProfile),
		recognized: defaultRecognizedLocations(),
		triggers:   make(map[string]int),
	}
}

// Start launches the background sweep. Calling Start on a running service is
// a no-op.
func (f *FraudService) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return
	}
	f.sched = cron.New()
	f.sched.Schedule(cron.Every(f.interval), cron.FuncJob(f.sweep))
	f.sched.Start()
	f.started = true
	f.log.Info("fraud surveillance started")
}

// Stop halts the sweep and blocks until any in-flight tick has finished.
// Calling Stop on a stopped service is a no-op.
func (f *FraudService) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	sched := f.sched
	f.sched = nil
	f.started = false
	f.mu.Unlock()

	// Stop returns a context that is done once running jobs have drained.
	<-sched.Stop().Done()
	f.log.Info("fraud surveillance stopped")
}

// sweep is the periodic background pass over the flagged collection. No rule
// logic runs here; it re-observes the backlog under the service lock.
func (f *FraudService) sweep() {
	f.mu.Lock()
	backlog := len(f.flagged)
	f.mu.Unlock()

	if backlog > 0 {
		f.log.Debugf("background scan: %d suspicious transactions under review", backlog)
	}
}

// AnalyzeTransaction evaluates one transaction against every check. Any hit
// flags the record, appends it to the flagged collection and emits an alert.
// The account profile is updated whether or not the record was flagged. A
// nil record is treated as not suspicious.
func (f *FraudService) AnalyzeTransaction(tx *models.Transaction) bool {
	if tx == nil {
		return false
	}

	f.mu.Lock()
	var triggered []string
	if f.checkHighValue(tx) {
		triggered = append(triggered, RuleHighValue)
	}
	if f.checkUnusualLocation(tx) {
		triggered = append(triggered, RuleUnusualLocation)
	}
	if f.checkRapidTransactions(tx) {
		triggered = append(triggered, RuleRapid)
	}
	if f.checkUnusualTime(tx) {
		triggered = append(triggered, RuleUnusualTime)
	}

	suspicious := len(triggered) > 0
	if suspicious {
		tx.MarkSuspicious()
		f.flagged = append(f.flagged, tx)
		for _, name := range triggered {
			f.triggers[name]++
		}
	}
	f.updateProfile(tx)
	f.mu.Unlock()

	if suspicious {
		if f.collector != nil {
			f.collector.RecordFlagged(triggered)
		}
		if f.alerter != nil {
			f.alerter.SendFraudAlert(tx.ID, tx.Amount, tx.Location)
		}
		f.log.Warnf("fraud alert: transaction %d flagged for %s", tx.ID, strings.Join(triggered, ", "))
	}
	return suspicious
}

// AnalyzeBatch runs every transaction of a batch through analysis.
func (f *FraudService) AnalyzeBatch(txs []*models.Transaction) {
	for _, tx := range txs {
		f.AnalyzeTransaction(tx)
	}
	f.log.Infof("analyzed batch of %d transactions", len(txs))
}

// checkHighValue trips when the amount exceeds the High Value Transaction
// rule's threshold. Caller holds f.mu.
func (f *FraudService) checkHighValue(tx *models.Transaction) bool {
	for _, rule := range f.rules {
		if rule.Name == RuleHighValue && rule.Enabled {
			return tx.Amount.GreaterThan(rule.Threshold)
		}
	}
	return false
}

// checkUnusualLocation trips when the location is not in the recognized
// set. Caller holds f.mu.
func (f *FraudService) checkUnusualLocation(tx *models.Transaction) bool {
	for _, loc := range f.recognized {
		if loc == tx.Location {
			return false
		}
	}
	return true
}

// checkRapidTransactions trips when two or more already-flagged transactions
// for the same account fall within the trailing hour of this record's
// timestamp, making the incoming record the third in the window. Caller
// holds f.mu.
func (f *FraudService) checkRapidTransactions(tx *models.Transaction) bool {
	recent := 0
	for _, flagged := range f.flagged {
		if flagged.AccountID != tx.AccountID {
			continue
		}
		diff := tx.CreatedAt.Sub(flagged.CreatedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < time.Hour {
			recent++
		}
	}
	return recent >= 2
}

// checkUnusualTime trips between 23:00 and 05:59 local time. On by
// default; adding a disabled Unusual Time rule entry switches it off.
// Caller holds f.mu.
func (f *FraudService) checkUnusualTime(tx *models.Transaction) bool {
	for _, rule := range f.rules {
		if rule.Name == RuleUnusualTime && !rule.Enabled {
			return false
		}
	}
	hour := tx.CreatedAt.Local().Hour()
	return hour >= 23 || hour <= 5
}

// updateProfile folds a transaction into the account's behavioral profile.
// Caller holds f.mu.
func (f *FraudService) updateProfile(tx *models.Transaction) {
	profile, ok := f.profiles[tx.AccountID]
	if !ok {
		profile = &AccountProfile{
			AccountID:     tx.AccountID,
			AverageAmount: tx.Amount,
			MaxAmount:     tx.Amount,
		}
		if tx.Location != "" {
			profile.CommonLocations = []string{tx.Location}
		}
		profile.TransactionCount = 1
		f.profiles[tx.AccountID] = profile
		return
	}

	profile.AverageAmount = profile.AverageAmount.Add(tx.Amount).Div(decimal.NewFromInt(2))
	if tx.Amount.GreaterThan(profile.MaxAmount) {
		profile.MaxAmount = tx.Amount
	}
	profile.TransactionCount++
	if tx.Location != "" {
		known := false
		for _, loc := range profile.CommonLocations {
			if loc == tx.Location {
				known = true
				break
			}
		}
		if !known {
			profile.CommonLocations = append(profile.CommonLocations, tx.Location)
		}
	}
}

// Profile returns a copy of the account's profile, nil if none exists yet.
func (f *FraudService) Profile(accountID int64) *AccountProfile {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[accountID]
	if !ok {
		return nil
	}
	out := *profile
	out.CommonLocations = append([]string(nil), profile.CommonLocations...)
	return &out
}

// AddRule appends a rule to the set.
func (f *FraudService) AddRule(name string, threshold decimal.Decimal, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &FraudRule{Name: name, Threshold: threshold, Enabled: enabled})
	f.log.Infof("added fraud rule %q (threshold %s)", name, threshold)
}

// RemoveRule deletes a rule by name; unknown names are a no-op.
func (f *FraudService) RemoveRule(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rule := range f.rules {
		if rule.Name == name {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			f.log.Infof("removed fraud rule %q", name)
			return
		}
	}
}

// UpdateRule changes a rule's threshold, reporting whether it was found.
func (f *FraudService) UpdateRule(name string, threshold decimal.Decimal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rule := range f.rules {
		if rule.Name == name {
			rule.Threshold = threshold
			f.log.Infof("updated fraud rule %q (threshold %s)", name, threshold)
			return true
		}
	}
	return false
}

// Rules returns a snapshot of the rule set.
func (f *FraudService) Rules() []FraudRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FraudRule, len(f.rules))
	for i, rule := range f.rules {
		out[i] = *rule
	}
	return out
}

// SetRecognizedLocations replaces the recognized-location set, typically
// from the advisory feed. An empty list is ignored.
func (f *FraudService) SetRecognizedLocations(locations []string) {
	if len(locations) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recognized = append([]string(nil), locations...)
	f.log.Infof("recognized-location set updated (%d entries)", len(locations))
}

// FlaggedTransactions returns a snapshot of the flagged collection.
func (f *FraudService) FlaggedTransactions() []*models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Transaction, len(f.flagged))
	copy(out, f.flagged)
	return out
}

// FlaggedForAccount returns the flagged records for one account.
func (f *FraudService) FlaggedForAccount(accountID int64) []*models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []*models.Transaction
	for _, tx := range f.flagged {
		if tx.AccountID == accountID {
			result = append(result, tx)
		}
	}
	return result
}

// MarkLegitimate removes a record from the flagged collection and clears
// its suspicious flag. Idempotent: unknown ids are a no-op.
func (f *FraudService) MarkLegitimate(txID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tx := range f.flagged {
		if tx.ID == txID {
			f.flagged = append(f.flagged[:i], f.flagged[i+1:]...)
			tx.ClearSuspicious()
			f.log.Infof("transaction %d marked legitimate", txID)
			return
		}
	}
}

// MarkFraud acknowledges a confirmed fraud. Downstream action (freezing the
// account, casework) happens outside this service.
func (f *FraudService) MarkFraud(txID int64) {
	f.log.Warnf("transaction %d confirmed as fraud", txID)
}

// Report summarizes flagged counts, rule triggers and the rule set.
func (f *FraudService) Report() FraudReport {
	f.mu.Lock()
	defer f.mu.Unlock()

	report := FraudReport{
		TotalFlagged: len(f.flagged),
		RuleTriggers: make(map[string]int, len(f.triggers)),
		Rules:        make([]FraudRule, len(f.rules)),
		Flagged:      make([]int64, len(f.flagged)),
	}
	for name, count := range f.triggers {
		report.RuleTriggers[name] = count
	}
	for i, rule := range f.rules {
		report.Rules[i] = *rule
	}
	for i, tx := range f.flagged {
		report.Flagged[i] = tx.ID
	}
	return report
}

// FraudRate returns flagged transactions as a percentage of total, zero when
// total is not positive.
func (f *FraudService) FraudRate(total int) float64 {
	if total <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return float64(len(f.flagged)) / float64(total) * 100
}

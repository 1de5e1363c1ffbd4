// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/phishsync/internal/models"
	"github.com/tomtom215/phishsync/internal/phishapi"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances only when Sleep is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeStore is an in-memory Store. Batch inserts are all-or-nothing and
// report natural-key conflicts the way the real stores do.
type fakeStore struct {
	mu sync.Mutex

	settings    map[string]string
	settingSets map[string]int
	companies   []models.Company
	scenarios   map[string]models.Scenario
	timeline    map[string][]models.TimelineEntry
	data        map[string][]models.ScenarioData
	ingestErrs  []models.IngestionError

	batchCalls int
	rowCalls   int

	// failRow, when set, fails single-row and batch inserts of matching rows
	// with a non-uniqueness error.
	failRow       func(recipientOrEmail string) bool
	listErr       error
	setSettingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: map[string]string{
			models.SettingAPIURL:  "https://api.example.test/api/v2",
			models.SettingLastRun: "2026-01-01T00:00:00Z",
		},
		settingSets: make(map[string]int),
		scenarios:   make(map[string]models.Scenario),
		timeline:    make(map[string][]models.TimelineEntry),
		data:        make(map[string][]models.ScenarioData),
	}
}

func (s *fakeStore) addCompany(id, name, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = append(s.companies, models.Company{ID: id, Name: name, GroupName: group, APIKey: "key-" + id})
}

func (s *fakeStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *fakeStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setSettingErr != nil && key == models.SettingLastRun {
		return s.setSettingErr
	}
	s.settings[key] = value
	s.settingSets[key]++
	return nil
}

func (s *fakeStore) EnsureCompany(_ context.Context, c *models.Company) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.companies {
		if s.companies[i].Name == c.Name {
			s.companies[i].GroupName = c.GroupName
			s.companies[i].APIKey = c.APIKey
			c.ID = s.companies[i].ID
			return false, nil
		}
	}
	c.ID = fmt.Sprintf("c%d", len(s.companies)+1)
	s.companies = append(s.companies, *c)
	return true, nil
}

func (s *fakeStore) ListCompanies(context.Context) ([]models.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]models.Company(nil), s.companies...), nil
}

func (s *fakeStore) GetScenario(_ context.Context, id string) (*models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (s *fakeStore) UpsertScenario(_ context.Context, sc *models.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios[sc.ID] = *sc
	return nil
}

func (s *fakeStore) FindScenarios(_ context.Context, f models.ScenarioFilter) ([]models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Scenario
	for _, sc := range s.scenarios {
		if f.CompanyID != "" && sc.CompanyID != f.CompanyID {
			continue
		}
		if f.FullyDownloaded != nil && sc.FullyDownloaded != *f.FullyDownloaded {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *fakeStore) scenario(id string) models.Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenarios[id]
}

func (s *fakeStore) TimelineKeys(_ context.Context, scenarioID string) (map[models.TimelineKey]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelineSet(scenarioID), nil
}

func (s *fakeStore) ScenarioDataKeys(_ context.Context, scenarioID string) (map[models.ScenarioDataKey]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataSet(scenarioID), nil
}

func (s *fakeStore) timelineSet(scenarioID string) map[models.TimelineKey]struct{} {
	set := make(map[models.TimelineKey]struct{}, len(s.timeline[scenarioID]))
	for i := range s.timeline[scenarioID] {
		set[s.timeline[scenarioID][i].Key()] = struct{}{}
	}
	return set
}

func (s *fakeStore) checkTimeline(e *models.TimelineEntry, set map[models.TimelineKey]struct{}) error {
	if s.failRow != nil && s.failRow(e.Recipient) {
		return errors.New("disk full")
	}
	k := e.Key()
	if _, dup := set[k]; dup {
		return fmt.Errorf("%w: %v", models.ErrDuplicateKey, k)
	}
	set[k] = struct{}{}
	return nil
}

func (s *fakeStore) InsertTimelineBatch(_ context.Context, entries []models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	if len(entries) == 0 {
		return nil
	}
	set := s.timelineSet(entries[0].ScenarioID)
	for i := range entries {
		if err := s.checkTimeline(&entries[i], set); err != nil {
			return err
		}
	}
	for _, e := range entries {
		s.timeline[e.ScenarioID] = append(s.timeline[e.ScenarioID], e)
	}
	return nil
}

func (s *fakeStore) InsertTimelineEntry(_ context.Context, e *models.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCalls++
	if err := s.checkTimeline(e, s.timelineSet(e.ScenarioID)); err != nil {
		return err
	}
	s.timeline[e.ScenarioID] = append(s.timeline[e.ScenarioID], *e)
	return nil
}

func (s *fakeStore) dataSet(scenarioID string) map[models.ScenarioDataKey]struct{} {
	set := make(map[models.ScenarioDataKey]struct{}, len(s.data[scenarioID]))
	for i := range s.data[scenarioID] {
		set[s.data[scenarioID][i].Key()] = struct{}{}
	}
	return set
}

func (s *fakeStore) checkData(d *models.ScenarioData, set map[models.ScenarioDataKey]struct{}) error {
	if s.failRow != nil && s.failRow(d.Email) {
		return errors.New("disk full")
	}
	k := d.Key()
	if _, dup := set[k]; dup {
		return fmt.Errorf("%w: %v", models.ErrDuplicateKey, k)
	}
	set[k] = struct{}{}
	return nil
}

func (s *fakeStore) InsertScenarioDataBatch(_ context.Context, rows []models.ScenarioData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	if len(rows) == 0 {
		return nil
	}
	set := s.dataSet(rows[0].ScenarioID)
	for i := range rows {
		if err := s.checkData(&rows[i], set); err != nil {
			return err
		}
	}
	for _, d := range rows {
		s.data[d.ScenarioID] = append(s.data[d.ScenarioID], d)
	}
	return nil
}

func (s *fakeStore) InsertScenarioDataRow(_ context.Context, d *models.ScenarioData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCalls++
	if err := s.checkData(d, s.dataSet(d.ScenarioID)); err != nil {
		return err
	}
	s.data[d.ScenarioID] = append(s.data[d.ScenarioID], *d)
	return nil
}

func (s *fakeStore) RecordIngestionErrors(_ context.Context, records []models.IngestionError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestErrs = append(s.ingestErrs, records...)
	return nil
}

func (s *fakeStore) timelineCount(scenarioID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timeline[scenarioID])
}

func (s *fakeStore) dataCount(scenarioID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[scenarioID])
}

// fakeAPI serves canned results. CSV results for a locator are consumed in
// order and the last one repeats.
type fakeAPI struct {
	mu sync.Mutex

	list      func(params *phishapi.Params) phishapi.Result[[]models.Scenario]
	csv       map[string][]phishapi.Result[string]
	listCalls int
	fetched   []string
}

func newFakeAPI(scenarios ...models.Scenario) *fakeAPI {
	return &fakeAPI{
		list: func(*phishapi.Params) phishapi.Result[[]models.Scenario] {
			return phishapi.Ok(scenarios)
		},
		csv: make(map[string][]phishapi.Result[string]),
	}
}

func (a *fakeAPI) serve(locator string, results ...phishapi.Result[string]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.csv[locator] = append(a.csv[locator], results...)
}

func (a *fakeAPI) ListScenarios(_ context.Context, params *phishapi.Params) phishapi.Result[[]models.Scenario] {
	a.mu.Lock()
	a.listCalls++
	list := a.list
	a.mu.Unlock()
	return list(params)
}

func (a *fakeAPI) FetchCSV(_ context.Context, locator string, _ *phishapi.Params) phishapi.Result[string] {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched = append(a.fetched, locator)
	queue := a.csv[locator]
	if len(queue) == 0 {
		return phishapi.Failed[string](fmt.Errorf("no canned response for %s", locator))
	}
	res := queue[0]
	if len(queue) > 1 {
		a.csv[locator] = queue[1:]
	}
	return res
}

func (a *fakeAPI) fetchedLocators() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.fetched...)
}

// apiByKey routes each tenant to its own fake by API key.
func apiByKey(apis map[string]*fakeAPI) APIFactory {
	return func(_, apiKey string) API {
		if a, ok := apis[apiKey]; ok {
			return a
		}
		return newFakeAPI()
	}
}

func testScenario(id, status, timelineURL, fullURL string) models.Scenario {
	return models.Scenario{
		ID:                  id,
		Title:               "Scenario " + id,
		Status:              status,
		DateStarted:         models.NewAPITime(testEpoch.Add(-24 * time.Hour)),
		ActivityTimelineURL: timelineURL,
		FullCSVURL:          fullURL,
	}
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inboxflow/internal/automation/domain"
	"inboxflow/pkg/googleauth"
)

// recorder keeps the order in which side effects happened
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

type fakeAutomations struct {
	items   []*domain.Automation
	created []*domain.Automation
	listErr error
	status  map[string]domain.AutomationStatus
}

func (f *fakeAutomations) ListActive(ctx context.Context) ([]*domain.Automation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Automation
	for _, a := range f.items {
		if a.Status == domain.StatusActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAutomations) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Automation, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.Automation
	for _, a := range f.items {
		if a.UserID == userID && a.Status == domain.StatusActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAutomations) FindByID(ctx context.Context, id string) (*domain.Automation, error) {
	for _, a := range f.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAutomations) FindByUserAndName(ctx context.Context, userID, name string) (*domain.Automation, error) {
	for _, a := range append(f.items, f.created...) {
		if a.UserID == userID && a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAutomations) Create(ctx context.Context, automation *domain.Automation) error {
	f.created = append(f.created, automation)
	return nil
}

func (f *fakeAutomations) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	if f.status == nil {
		f.status = make(map[string]domain.AutomationStatus)
	}
	f.status[id] = status
	return nil
}

type tokenUpdate struct {
	id          string
	accessToken string
	expiresAt   time.Time
}

type fakeConnections struct {
	conns   []*domain.Connection
	updates []tokenUpdate
	getErr  error
}

func (f *fakeConnections) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.Connection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.conns {
		if c.UserID == userID && c.Provider == provider {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeConnections) FindByExternalID(ctx context.Context, provider domain.Provider, externalID string) (*domain.Connection, error) {
	for _, c := range f.conns {
		if c.Provider == provider && c.ExternalID == externalID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeConnections) Replace(ctx context.Context, conn *domain.Connection) error {
	f.conns = append(f.conns, conn)
	return nil
}

func (f *fakeConnections) UpdateToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	f.updates = append(f.updates, tokenUpdate{id: id, accessToken: accessToken, expiresAt: expiresAt})
	for _, c := range f.conns {
		if c.ID == id {
			c.AccessToken = accessToken
			exp := expiresAt
			c.ExpiresAt = &exp
		}
	}
	return nil
}

type fakeExecutions struct {
	mu      sync.Mutex
	records map[string]bool
	logs    []*domain.ExecutionLog
	gateErr error
}

func newFakeExecutions() *fakeExecutions {
	return &fakeExecutions{records: make(map[string]bool)}
}

func (f *fakeExecutions) TryAcquire(ctx context.Context, automationID, eventID string) (bool, error) {
	if f.gateErr != nil {
		return false, f.gateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := automationID + "/" + eventID
	if f.records[key] {
		return false, nil
	}
	f.records[key] = true
	return true, nil
}

func (f *fakeExecutions) AppendLog(ctx context.Context, log *domain.ExecutionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeExecutions) ListLogs(ctx context.Context, automationID string, limit int) ([]*domain.ExecutionLog, error) {
	var out []*domain.ExecutionLog
	for _, l := range f.logs {
		if l.AutomationID == automationID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeRefresher struct {
	token *googleauth.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*googleauth.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeSource struct {
	results     []domain.EventRef
	events      map[string]*domain.Event
	attachments map[string][]byte
	fetchErr    map[string]error
	searchErr   error
	queries     []string
	tokens      []string
	fetched     []string
	markedRead  []string
	rec         *recorder
}

func (f *fakeSource) Search(ctx context.Context, cred domain.Credential, query string, max int64) ([]domain.EventRef, error) {
	f.queries = append(f.queries, query)
	f.tokens = append(f.tokens, cred.AccessToken)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeSource) FetchFull(ctx context.Context, cred domain.Credential, id string) (*domain.Event, error) {
	f.fetched = append(f.fetched, id)
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	event, ok := f.events[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return event, nil
}

func (f *fakeSource) MarkRead(ctx context.Context, cred domain.Credential, id string) error {
	f.markedRead = append(f.markedRead, id)
	return nil
}

func (f *fakeSource) FetchAttachment(ctx context.Context, cred domain.Credential, messageID, attachmentID string) ([]byte, error) {
	f.rec.add("fetch_attachment:" + attachmentID)
	data, ok := f.attachments[attachmentID]
	if !ok {
		return nil, fmt.Errorf("attachment %s not found", attachmentID)
	}
	return data, nil
}

type fakeAnalyzer struct {
	result   *domain.AnalysisResult
	err      error
	language string
	doc      domain.EmailDocument
	rec      *recorder
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, doc domain.EmailDocument, language string) (*domain.AnalysisResult, error) {
	f.rec.add("analyze")
	f.doc = doc
	f.language = language
	return f.result, f.err
}

type sentMessage struct {
	chatID string
	text   string
}

type fakeMessenger struct {
	sent []sentMessage
	err  error
	rec  *recorder
}

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID, text string) error {
	f.rec.add("send_message")
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

type appendedRow struct {
	accessToken   string
	spreadsheetID string
	rng           string
	values        []interface{}
}

type fakeSheets struct {
	rows    []appendedRow
	err     error
	rec     *recorder
	created []string
}

func (f *fakeSheets) AppendRow(ctx context.Context, accessToken, spreadsheetID, rng string, values []interface{}) error {
	f.rec.add("append_row")
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, appendedRow{accessToken: accessToken, spreadsheetID: spreadsheetID, rng: rng, values: values})
	return nil
}

func (f *fakeSheets) CreateSpreadsheet(ctx context.Context, accessToken, title, sheetName string, headers []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, title+"/"+sheetName)
	return "sheet-" + title, nil
}

type upload struct {
	filename string
	mimeType string
	content  string
	folderID string
}

type fakeDrive struct {
	uploads []upload
	folders []string
	err     error
	rec     *recorder
}

func (f *fakeDrive) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderID string) (string, error) {
	f.rec.add("upload:" + filename)
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, upload{filename: filename, mimeType: mimeType, content: string(content), folderID: folderID})
	return "file-" + filename, nil
}

func (f *fakeDrive) CreateFolder(ctx context.Context, accessToken, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.folders = append(f.folders, name)
	return "folder-" + name, nil
}

func googleConnection(userID string) *domain.Connection {
	return &domain.Connection{
		ID:           "conn-google-" + userID,
		UserID:       userID,
		Provider:     domain.ProviderGoogle,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExternalID:   userID + "@gmail.com",
	}
}

func telegramConnection(userID, chatID string) *domain.Connection {
	return &domain.Connection{
		ID:         "conn-telegram-" + userID,
		UserID:     userID,
		Provider:   domain.ProviderTelegram,
		ExternalID: chatID,
	}
}

func newEvent(id, from string) *domain.Event {
	return &domain.Event{
		ID:       id,
		ThreadID: "t-" + id,
		Headers: []domain.Header{
			{Name: "From", Value: from},
			{Name: "Subject", Value: "Invoice " + id},
			{Name: "Date", Value: "Mon, 11 May 2026 10:00:00 +0000"},
		},
		TextBody: "Please pay invoice " + id,
	}
}

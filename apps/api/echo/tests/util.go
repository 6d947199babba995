package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/tukerin/backend/apps/api/echo"
	"github.com/tukerin/backend/core"
	"github.com/tukerin/backend/core/management"
	"github.com/tukerin/backend/core/user"
	emailsvc "github.com/tukerin/backend/services/email"
	inmemdb "github.com/tukerin/backend/storage/database/inmem"
	testutil "github.com/tukerin/backend/tests"
)

var (
	ctxBg = context.Background()

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

type env struct {
	app     *Server
	conf    *core.Config
	db      *inmemdb.DB
	usrRepo user.Repository
	mgmtSvc *management.Service
	logs    *bytes.Buffer
}

func setup(t *testing.T, wrap ...func(management.Repository) management.Repository) *env {
	e := &env{conf: testutil.NewConfig(), db: inmemdb.Open(), logs: new(bytes.Buffer)}
	logger := testutil.NewLogger(e.logs, e.conf)

	// set up repos
	e.usrRepo = inmemdb.NewUserRepository(e.db)
	var mgmtRepo management.Repository = inmemdb.NewManagementRepository(e.db)
	for _, w := range wrap {
		mgmtRepo = w(mgmtRepo)
	}

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(e.conf, logger)
	e.mgmtSvc = management.NewService(mgmtRepo, logger, mailSvc, e.conf)

	// set up server
	validate, translator := testutil.NewValidatorWithTranslator()
	e.app = NewServer(ServerDeps{
		Conf:       e.conf,
		Logger:     logger,
		UserSvc:    user.NewService(e.usrRepo, logger),
		MgmtSvc:    e.mgmtSvc,
		Validate:   validate,
		Translator: translator,
	})
	return e
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body []byte
	if len(data) > 0 {
		body = data[0]
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (e *env) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	e.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User, conf *core.Config, origIat ...int64) string {
	token, err := GenerateToken(GetUserClaims(usr, conf, origIat...), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

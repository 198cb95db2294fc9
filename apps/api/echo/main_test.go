package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/koneum/eduwaly/apps/api/echo"
	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/plan"
	"github.com/koneum/eduwaly/core/user"
	"github.com/koneum/eduwaly/tests"
)

var (
	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken     = httpErr{Error: "invalid or expired jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}

	strongPwd = "Kx9#mQ2!vL"
)

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
}

type fixture struct {
	env    *testutil.Env
	server *echoapi.Server
}

func setup(t *testing.T) *fixture {
	env := testutil.NewEnv(t)
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            env.Conf,
		Logger:          core.NewNopLogger(),
		Validate:        validate,
		Translator:      translator,
		UserSvc:         env.UserSvc,
		SchoolSvc:       env.SchoolSvc,
		PlanSvc:         env.PlanSvc,
		SubscriptionSvc: env.SubscriptionSvc,
		PermissionSvc:   env.PermissionSvc,
	})
	return &fixture{env: env, server: server}
}

func (f *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, f.do(method, tt.path, tt.token, tt.body))
		})
	}
}

func (f *fixture) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(f.env.Conf, echoapi.GetUserClaims(f.env.Conf, usr))
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// checkCodeAndData compares the body only when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

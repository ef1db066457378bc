package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, legacy bool) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:        srv.URL,
		Tokens:         oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "service-token"}),
		LegacyStatuses: legacy,
		Location:       time.UTC,
	})
	require.NoError(t, err)
	return c
}

func writeEnvelope(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"statusCode":200,"message":"ok","data":` + data + `}`))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	assert.Error(t, err)
}

func TestFetchAttendance_SplitsStudentsAndGuardians(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/get-all-work-group/sec-1", r.URL.Path)
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		writeEnvelope(w, `[
			{"id":"1","alumnoId":"link-1","fecha":"2025-01-04T00:00:00.000Z","estado":"asistio","nombre":"Ana","imagen":"a.png"},
			{"id":"2","alumnoId":"link-2","fecha":"2025-01-04","estado":"asistió","nombre":"Luis"},
			{"id":"3","userId":"tutor-1","fecha":"2025-01-04T00:00:00.000Z","estado":"asistio","hora_inicio":"2025-01-04T09:00:00.000Z","hora_fin":"2025-01-04T11:30:00.000Z"},
			{"id":"4","alumnoId":"link-3","fecha":"2025-01-04","estado":"tarde"}
		]`)
	}, true)

	sheet, err := c.FetchAttendance(context.Background(), "sec-1")
	require.NoError(t, err)

	require.Len(t, sheet.Students, 2)
	assert.Equal(t, attendance.StudentAttendance{LinkID: "link-1", Date: "2025-01-04", Status: attendance.StatusAttended, Name: "Ana", Image: "a.png"}, sheet.Students[0])
	assert.Equal(t, attendance.StatusAttended, sheet.Students[1].Status)

	require.Len(t, sheet.Guardians, 1)
	g := sheet.Guardians[0]
	assert.Equal(t, "tutor-1", g.GuardianUserID)
	assert.Equal(t, "09:00:00", g.CheckIn.String())
	assert.Equal(t, "11:30:00", g.CheckOut.String())
}

func TestSubmitAttendanceBatch_Body(t *testing.T) {
	var got batchDTO
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/attendance", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}, true)

	err := c.SubmitAttendanceBatch(context.Background(), attendance.BatchRequest{
		SectionID: "sec-1",
		Records: []attendance.BatchRecord{
			{LinkID: "link-1", Date: "2025-01-04", Status: attendance.StatusAbsent},
			{LinkID: "link-2", Date: "2025-01-04", Status: attendance.StatusExcused},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []batchLineDTO{
		{UserXWorkGroupID: "link-1", Fecha: "2025-01-04", Estado: "falto"},
		{UserXWorkGroupID: "link-2", Fecha: "2025-01-04", Estado: "permiso"},
	}, got.Asistencias)
}

func TestSubmitGuardianRecord_ConflictMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/asistencia/encargado/sec-1", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"overlap"}`))
	}, false)

	err := c.SubmitGuardianRecord(context.Background(), "sec-1", attendance.GuardianAttendance{
		GuardianUserID: "tutor-1",
		Date:           "2025-01-04",
		Status:         attendance.StatusAttended,
		CheckIn:        9 * 3600,
		CheckOut:       10 * 3600,
	})

	assert.ErrorIs(t, err, attendance.ErrScheduleConflict)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusConflict, remote.StatusCode)
}

func TestSubmitGuardianRecord_SentinelTimes(t *testing.T) {
	var got guardianDTO
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}, false)

	err := c.SubmitGuardianRecord(context.Background(), "sec-1", attendance.GuardianAttendance{
		GuardianUserID: "tutor-1",
		Date:           "2025-01-04",
		Status:         attendance.StatusAbsent,
		CheckIn:        attendance.SentinelTime,
		CheckOut:       attendance.SentinelTime,
	})
	require.NoError(t, err)

	assert.Equal(t, "absent", got.Estado)
	assert.Equal(t, "2025-01-04T00:00:00Z", got.Fecha)
	assert.Equal(t, "2025-01-04T00:00:00Z", got.HoraInicio)
	assert.Equal(t, "2025-01-04T00:00:00Z", got.HoraFin)
}

func TestServerError_IsGatewayUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, false)

	err := c.SubmitAttendanceBatch(context.Background(), attendance.BatchRequest{SectionID: "sec-1"})
	assert.ErrorIs(t, err, attendance.ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, attendance.ErrScheduleConflict)
}

func TestFetchMonthHistory_UsesFirstArrayElement(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/attendance/work-group/sec-1", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("month"))
		assert.Equal(t, "2025", r.URL.Query().Get("year"))
		writeEnvelope(w, `[{
			"2025-01-04": [{"alumnoId":"link-1","fecha":"2025-01-04","estado":"falto","nombre":"Ana"}],
			"2025-01-11T00:00:00.000Z": [{"alumnoId":"link-1","fecha":"2025-01-11","estado":"permiso","nombre":"Ana"}]
		}]`)
	}, false)

	bucket, err := c.FetchMonthHistory(context.Background(), "sec-1", 1, 2025)
	require.NoError(t, err)

	status, ok := bucket.StatusOf("link-1", time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusAbsent, status)

	status, ok = bucket.StatusOf("link-1", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.Equal(t, attendance.StatusExcused, status)
}

func TestFetchSection_Roster(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `{"_id":"sec-1","nombre":"Sabado A","slug":"sabado-a",
			"alumnos":[{"_id":"u-1","nombre":"Ana","image":"a.png","userXWorkgroupId":"link-1"}],
			"tutores":[{"_id":"tutor-1","nombre":"Marta"}]}`)
	}, false)

	sec, err := c.FetchSection(context.Background(), "sec-1")
	require.NoError(t, err)

	m, ok := sec.StudentByLink("link-1")
	require.True(t, ok)
	assert.Equal(t, "Ana", m.Name)
	_, ok = sec.TutorByUser("tutor-1")
	assert.True(t, ok)
}

func TestFetchMySections_AcceptsSingleObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-x-work-groups/me", r.URL.Path)
		writeEnvelope(w, `{"_id":"sec-1","nombre":"Sabado A"}`)
	}, false)

	sections, err := c.FetchMySections(context.Background(), "tutor-1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "sec-1", sections[0].ID)
}

func TestWithToken_OverridesServiceToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer operator-token", r.Header.Get("Authorization"))
		writeEnvelope(w, `[]`)
	}, false)

	_, err := c.FetchAttendance(WithToken(context.Background(), "operator-token"), "sec-1")
	require.NoError(t, err)
}

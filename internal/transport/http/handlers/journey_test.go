package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gestor/internal/app/server"
	"gestor/internal/platform/config"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error any             `json:"error"`
}

func testConfig(dbURL string) config.Config {
	return config.Config{
		DatabaseURL:             dbURL,
		JWTSecret:               "test-secret",
		TokenTTL:                time.Hour,
		Environment:             "test",
		SeedAdminEmail:          "admin@test.local",
		SeedAdminPassword:       "ChangeMe123!",
		RunMigrations:           true,
		RunSeed:                 true,
		MaxBodyBytes:            1048576,
		RateLimitPerMinute:      1000,
		MetricsEnabled:          true,
		PayslipDir:              "testdata/payslips",
		DefaultEmployeeINSSRate: decimal.NewFromInt(3),
		DefaultEmployerINSSRate: decimal.NewFromInt(4),
		DefaultIVARate:          decimal.NewFromInt(16),
	}
}

func TestPayrollAndRetentionJourney(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	// The seeded bracket table is for 2024 and periods are unique per month,
	// so clear the slot this journey reuses.
	if _, err := app.DB.Exec(ctx, "DELETE FROM tax_retentions WHERE period = '2024-06'"); err != nil {
		t.Fatalf("failed to clear retentions: %v", err)
	}
	if _, err := app.DB.Exec(ctx, "DELETE FROM payroll_periods WHERE year = 2024 AND month = 6"); err != nil {
		t.Fatalf("failed to clear period: %v", err)
	}

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	employeeEmail := fmt.Sprintf("journey-%d@example.com", time.Now().UnixNano())
	employeeID := createEmployee(t, client, ts.URL, token, employeeEmail, "50000")

	periodID := createPeriod(t, client, ts.URL, token, 2024, 6)

	summary := runPayroll(t, client, ts.URL, token, periodID)
	if summary["employeeCount"].(float64) < 1 {
		t.Fatalf("expected at least one employee in run summary, got %v", summary["employeeCount"])
	}

	result := findResult(t, client, ts.URL, token, periodID, employeeID)
	assertDecimal(t, result, "incomeTax", "6733")
	assertDecimal(t, result, "employeeSocialSecurity", "1500")
	assertDecimal(t, result, "net", "41767")

	retentions := listRetentions(t, client, ts.URL, token, "2024-06", result["id"].(string))
	if len(retentions) != 3 {
		t.Fatalf("expected 3 retentions for the result, got %d", len(retentions))
	}
	for _, retention := range retentions {
		if retention["status"] != "pending" {
			t.Fatalf("expected pending retention before finalize, got %v", retention["status"])
		}
	}

	finalizePayroll(t, client, ts.URL, token, periodID)

	retentions = listRetentions(t, client, ts.URL, token, "2024-06", result["id"].(string))
	for _, retention := range retentions {
		if retention["status"] != "applied" {
			t.Fatalf("expected applied retention after finalize, got %v", retention["status"])
		}
	}

	csvBody := exportDeclaration(t, client, ts.URL, token, "2024-06")
	if !bytes.Contains(csvBody, []byte("irps")) {
		t.Fatalf("expected declaration CSV to contain irps rows: %s", csvBody)
	}

	retentions = listRetentions(t, client, ts.URL, token, "2024-06", result["id"].(string))
	for _, retention := range retentions {
		if retention["status"] != "reported" {
			t.Fatalf("expected reported retention after declaration export, got %v", retention["status"])
		}
	}

	payslips := listPayslips(t, client, ts.URL, token, employeeID)
	if len(payslips) != 1 {
		t.Fatalf("expected one payslip for the employee, got %d", len(payslips))
	}
}

func TestSimulationEndpoints(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	client := ts.Client()
	token := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	resp := postJSON(t, client, ts.URL+"/api/v1/fiscal/simulate/payroll", token, map[string]any{
		"grossSalary": "50000",
		"period":      "2024-06",
	})
	var breakdown map[string]any
	if err := json.Unmarshal(resp.Data, &breakdown); err != nil {
		t.Fatalf("failed to decode breakdown: %v", err)
	}
	assertDecimal(t, breakdown, "incomeTax", "6733")

	resp = postJSON(t, client, ts.URL+"/api/v1/fiscal/simulate/vat", token, map[string]any{
		"baseAmount": "1000",
	})
	var vat map[string]any
	if err := json.Unmarshal(resp.Data, &vat); err != nil {
		t.Fatalf("failed to decode vat: %v", err)
	}
	assertDecimal(t, vat, "vatAmount", "160")
}

func TestPermissionsEnforced(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := testConfig(dbURL)
	app, err := server.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to start app: %v", err)
	}
	defer app.Close()

	ts := httptest.NewServer(app.Router)
	defer ts.Close()

	getJSONStatus(t, ts.Client(), ts.URL+"/api/v1/fiscal/brackets", "", http.StatusUnauthorized)
	getJSONStatus(t, ts.Client(), ts.URL+"/api/v1/employees", "", http.StatusUnauthorized)
}

func login(t *testing.T, client *http.Client, baseURL, email, password string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatal("expected token")
	}
	return token
}

func createEmployee(t *testing.T, client *http.Client, baseURL, token, email, baseSalary string) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/employees", token, map[string]any{
		"firstName":  "Journey",
		"lastName":   "Tester",
		"email":      email,
		"position":   "Analyst",
		"baseSalary": baseSalary,
		"currency":   "MZN",
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode employee response: %v", err)
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("expected employee id")
	}
	return id
}

func createPeriod(t *testing.T, client *http.Client, baseURL, token string, year, month int) string {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/payroll/periods", token, map[string]any{
		"year":  year,
		"month": month,
	})
	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode period response: %v", err)
	}
	id, _ := payload["id"].(string)
	if id == "" {
		t.Fatal("expected period id")
	}
	return id
}

func runPayroll(t *testing.T, client *http.Client, baseURL, token, periodID string) map[string]any {
	t.Helper()
	resp := postJSON(t, client, baseURL+"/api/v1/payroll/periods/"+periodID+"/run", token, nil)
	var summary map[string]any
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatalf("failed to decode run summary: %v", err)
	}
	return summary
}

func finalizePayroll(t *testing.T, client *http.Client, baseURL, token, periodID string) {
	t.Helper()
	postJSON(t, client, baseURL+"/api/v1/payroll/periods/"+periodID+"/finalize", token, nil)
}

func findResult(t *testing.T, client *http.Client, baseURL, token, periodID, employeeID string) map[string]any {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/payroll/periods/"+periodID+"/results", token)
	var results []map[string]any
	if err := json.Unmarshal(resp.Data, &results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	for _, result := range results {
		if result["employeeId"] == employeeID {
			return result
		}
	}
	t.Fatalf("no result for employee %s", employeeID)
	return nil
}

func listRetentions(t *testing.T, client *http.Client, baseURL, token, period, documentRef string) []map[string]any {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/fiscal/retentions?period="+period, token)
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode retentions: %v", err)
	}
	var matched []map[string]any
	for _, retention := range payload.Items {
		if retention["documentRef"] == documentRef {
			matched = append(matched, retention)
		}
	}
	return matched
}

func listPayslips(t *testing.T, client *http.Client, baseURL, token, employeeID string) []map[string]any {
	t.Helper()
	resp := getJSON(t, client, baseURL+"/api/v1/payroll/payslips?employeeId="+employeeID, token)
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("failed to decode payslips: %v", err)
	}
	return payload.Items
}

func exportDeclaration(t *testing.T, client *http.Client, baseURL, token, period string) []byte {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/reports/declarations/"+period, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return raw
}

func assertDecimal(t *testing.T, payload map[string]any, field, want string) {
	t.Helper()
	raw, ok := payload[field]
	if !ok {
		t.Fatalf("missing field %s in %v", field, payload)
	}
	got, err := decimal.NewFromString(fmt.Sprintf("%v", raw))
	if err != nil {
		t.Fatalf("field %s is not a decimal: %v", field, raw)
	}
	expected := decimal.RequireFromString(want)
	if !got.Equal(expected) {
		t.Fatalf("field %s = %s, want %s", field, got, expected)
	}
}

func postJSON(t *testing.T, client *http.Client, url, token string, body any) envelope {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(http.MethodPost, url, reader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return env
}

func getJSON(t *testing.T, client *http.Client, url, token string) envelope {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.StatusCode >= 400 {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
	return env
}

func getJSONStatus(t *testing.T, client *http.Client, url, token string, want int) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d: %s", want, resp.StatusCode, string(raw))
	}
}

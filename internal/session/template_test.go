package session

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewListURL = "https://seller.ozon.ru/api/v4/review/list"

func writeHAR(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.har")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleHAR = `{
	"log": {
		"entries": [
			{
				"request": {
					"url": "https://seller.ozon.ru/api/v4/review/list",
					"headers": [
						{"name": "Content-Type", "value": "application/json"},
						{"name": "Cookie", "value": "secret=1"},
						{"name": "User-Agent", "value": "CapturedAgent/1.0"},
						{"name": "x-o3-company-id", "value": "777"},
						{"name": "sec-ch-ua", "value": "\"Chromium\";v=\"144\""},
						{"name": "Authorization", "value": "Bearer nope"},
						{"name": ":authority", "value": "seller.ozon.ru"}
					],
					"postData": {"text": "{\"company_id\":\"777\",\"company_type\":\"seller\",\"filter\":{\"interaction_status\":[\"NOT_VIEWED\"]}}"}
				},
				"response": {"status": 200, "content": {"text": "{\"result\":[]}"}}
			}
		]
	}
}`

func TestLoadTemplate(t *testing.T) {
	path := writeHAR(t, sampleHAR)

	template := LoadTemplate(path, reviewListURL)
	require.NotNil(t, template)

	assert.Equal(t, "777", template.CompanyID)
	assert.Equal(t, "CapturedAgent/1.0", template.UserAgent)
	assert.Equal(t, "seller", template.CompanyType())
	assert.Equal(t, map[string]any{"interaction_status": []any{"NOT_VIEWED"}}, template.Filter())

	assert.Equal(t, "application/json", template.Headers["content-type"])
	assert.Equal(t, "\"Chromium\";v=\"144\"", template.Headers["sec-ch-ua"])
	assert.NotContains(t, template.Headers, "cookie", "captured cookies must never be reused")
	assert.NotContains(t, template.Headers, "authorization")
	assert.NotContains(t, template.Headers, "authority")
}

func TestLoadTemplateLastMatchWins(t *testing.T) {
	path := writeHAR(t, `{
		"log": {"entries": [
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list",
				"headers": [{"name": "x-o3-company-id", "value": "first"}]}},
			{"request": {"url": "https://other.example.com/ignored",
				"headers": [{"name": "x-o3-company-id", "value": "other"}]}},
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list?page=2",
				"headers": [{"name": "x-o3-company-id", "value": "second"}]}}
		]}
	}`)

	template := LoadTemplate(path, reviewListURL)
	require.NotNil(t, template)
	assert.Equal(t, "second", template.CompanyID)
}

func TestLoadTemplateNoMatch(t *testing.T) {
	path := writeHAR(t, `{"log": {"entries": [
		{"request": {"url": "https://unrelated.example.com/"}}
	]}}`)
	assert.Nil(t, LoadTemplate(path, reviewListURL))
}

func TestLoadTemplateMissingFile(t *testing.T) {
	assert.Nil(t, LoadTemplate(filepath.Join(t.TempDir(), "gone.har"), reviewListURL))
}

func TestBuildHeaders(t *testing.T) {
	template := &Template{
		Headers: map[string]string{
			"accept-language": "ru-RU,ru;q=0.9",
			"x-o3-company-id": "stale-id",
		},
		UserAgent: "CapturedAgent/1.0",
	}

	headers, userAgent := BuildHeaders("42", template)

	assert.Equal(t, "42", headers["x-o3-company-id"], "resolved company id must override the capture")
	assert.Equal(t, "CapturedAgent/1.0", userAgent)
	assert.Equal(t, "CapturedAgent/1.0", headers["user-agent"])
	assert.Equal(t, "ru-RU,ru;q=0.9", headers["accept-language"])
	assert.Equal(t, "https://seller.ozon.ru", headers["origin"])
	assert.Equal(t, "application/json", headers["content-type"])
}

func TestBuildHeadersWithoutTemplate(t *testing.T) {
	headers, userAgent := BuildHeaders("42", nil)

	assert.Equal(t, DefaultUserAgent, userAgent)
	assert.Equal(t, "42", headers["x-o3-company-id"])
	assert.Equal(t, "ru", headers["x-o3-language"])
	assert.NotContains(t, headers, "cookie")
}

func TestCollectHARResponses(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"result":[{"uuid":"b"}]}`))
	path := writeHAR(t, `{
		"log": {"entries": [
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list"},
			 "response": {"status": 200, "content": {"text": "{\"result\":[{\"uuid\":\"a\"}]}"}}},
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list"},
			 "response": {"status": 403, "content": {"text": "denied"}}},
			{"request": {"url": "https://seller.ozon.ru/api/v4/review/list"},
			 "response": {"status": 200, "content": {"text": "`+encoded+`", "encoding": "base64"}}},
			{"request": {"url": "https://elsewhere.example.com/"},
			 "response": {"status": 200, "content": {"text": "{}"}}}
		]}
	}`)

	bodies := CollectHARResponses(path, reviewListURL)
	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"result":[{"uuid":"a"}]}`, string(bodies[0]))
	assert.JSONEq(t, `{"result":[{"uuid":"b"}]}`, string(bodies[1]))
}

// Command smoke_chat drives a running server through one full conversation:
// create a session, optionally upload a PDF, ask two questions, clear.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var client = &http.Client{Timeout: 2 * time.Minute}

// Pretty print JSON helper
func prettyPrint(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

func do(req *http.Request) (*envelope, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("status %s: %s", resp.Status, body)
	}
	if !env.Success {
		return &env, fmt.Errorf("status %d: %s", env.Code, env.Message)
	}
	return &env, nil
}

func sendJSON(method, url string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req)
}

func upload(url, path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return do(req)
}

func must(env *envelope, err error) *envelope {
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("OK: %s", env.Message)
	return env
}

func main() {
	baseURL := flag.String("base", "http://localhost:3000/api/chat/v1", "chat API base URL")
	pdfPath := flag.String("pdf", "", "optional PDF to attach before asking")
	flag.Parse()

	color.Cyan("🚀 Starting chat smoke test against %s\n", *baseURL)

	color.Yellow("\n1. Create session")
	env := must(sendJSON(http.MethodPost, *baseURL+"/sessions", nil))
	var session struct {
		Id string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &session)
	sessionURL := *baseURL + "/sessions/" + session.Id

	if *pdfPath != "" {
		color.Yellow("\n2. Upload %s", *pdfPath)
		prettyPrint(must(upload(sessionURL+"/documents", *pdfPath)).Data)
	}

	questions := []string{"Summarize what you know so far in one sentence.", "And what was my first question?"}
	for i, q := range questions {
		color.Yellow("\n3.%d Send: %s", i+1, q)
		env := must(sendJSON(http.MethodPost, sessionURL+"/messages", map[string]string{"message": q}))
		var res struct {
			Reply struct {
				Text string `json:"text"`
			} `json:"reply"`
			Fallback bool `json:"fallback"`
		}
		_ = json.Unmarshal(env.Data, &res)
		if res.Fallback {
			color.Magenta("Fallback reply: %s", res.Reply.Text)
		} else {
			fmt.Println(res.Reply.Text)
		}
	}

	color.Yellow("\n4. Session snapshot")
	prettyPrint(must(sendJSON(http.MethodGet, sessionURL, nil)).Data)

	color.Yellow("\n5. Clear session")
	must(sendJSON(http.MethodPost, sessionURL+"/clear", nil))

	color.Cyan("\n✅ Smoke test finished")
}

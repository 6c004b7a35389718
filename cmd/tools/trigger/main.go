package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type jobStatus struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Starts an ingest run on a live server and polls the job until it ends.
func main() {
	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}
	base := strings.TrimRight(os.Getenv("SIGNAL_DESK_URL"), "/")
	if base == "" {
		base = "http://localhost:8080"
	}

	client := &http.Client{Timeout: 30 * time.Second}

	var started struct {
		JobID string `json:"job_id"`
		Error string `json:"error"`
	}
	status, err := call(client, http.MethodPost, base+"/api/v1/admin/ingest", adminSecret, &started)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Response Status: %d\n", status)
	if status != http.StatusAccepted {
		fmt.Printf("Not started: %s\n", started.Error)
		os.Exit(1)
	}

	for {
		time.Sleep(2 * time.Second)
		var job jobStatus
		if _, err := call(client, http.MethodGet, base+"/api/v1/admin/job/"+started.JobID, adminSecret, &job); err != nil {
			fmt.Printf("Error polling job: %v\n", err)
			os.Exit(1)
		}
		if job.Status == "running" {
			fmt.Print(".")
			continue
		}
		fmt.Printf("\nJob %s %s\n", job.ID, job.Status)
		if len(job.Result) > 0 {
			fmt.Println(string(job.Result))
		}
		if job.Status != "completed" {
			fmt.Println(job.Error)
			os.Exit(1)
		}
		return
	}
}

func call(client *http.Client, method, url, secret string, out any) (int, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Admin-Secret", secret)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

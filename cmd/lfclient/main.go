// Command lfclient is a small client for machine-side license operations.
// It derives this machine's hardware id and calls the verify, activate,
// validate or deactivate endpoint with it.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"licenseforge/internal/security"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "licenseforge server base URL")
	key := flag.String("key", "", "license key")
	hardwareID := flag.String("hardware-id", "", "override the derived hardware id")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Parse()

	op := flag.Arg(0)
	switch op {
	case "fingerprint":
		fp := security.DeviceFingerprint()
		json.NewEncoder(os.Stdout).Encode(fp)
		return
	case "verify", "activate", "validate", "deactivate":
	default:
		fmt.Fprintln(os.Stderr, "usage: lfclient [flags] fingerprint|verify|activate|validate|deactivate")
		os.Exit(2)
	}

	if *key == "" {
		fmt.Fprintln(os.Stderr, "lfclient: -key is required")
		os.Exit(2)
	}
	hw := *hardwareID
	if hw == "" {
		hw = security.DeviceFingerprint().HardwareID
	}

	body, err := json.Marshal(map[string]string{
		"license_key": *key,
		"hardware_id": hw,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "lfclient: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Post(*server+"/api/v1/licenses/"+op, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "lfclient: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lfclient: reading response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

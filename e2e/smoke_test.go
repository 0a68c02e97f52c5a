//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"airquality/internal/mqtt"
)

const repoRootRel = ".."              // relative to ./e2e
const mainPkgRel = "./cmd/airquality" // main.go lives in cmd/airquality
const mqttPort = nat.Port("1883/tcp")

const sampleCSV = `Date,Time,CO(GT),C6H6(GT),NOx(GT),NO2(GT),T,RH
10/03/2004,18.00.00,2.6,11.9,166,113,13.6,48.9
10/03/2004,19.00.00,2,9.4,103,92,13.3,47.7
11/03/2004,00.00.00,1.2,4.4,62,77,11.2,59.6
11/03/2004,01.00.00,1.0,3.6,54,70,11.3,60.1
`

func TestSmoke_Healthz(t *testing.T) {
	repoRoot := repoRootPath(t)
	dataPath := writeData(t)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)

	cmd := exec.Command(bin, "serve")
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=info",
		"HTTP_ADDR="+addr,
		"DATA_PATH="+dataPath,
		"EXPORT_SCHEDULE=",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	url := "http://" + addr + "/healthz"

	waitForOK(t, client, url, 5*time.Second)

	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
		Days    int    `json:"days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if body.Status != "ok" || body.Records != 4 || body.Days != 2 {
		t.Fatalf("body=%+v want status=ok records=4 days=2", body)
	}

	stopServer(t, cmd)
}

func TestSmoke_Publish(t *testing.T) {
	repoRoot := repoRootPath(t)
	dataPath := writeData(t)
	host, port := startBroker(t)

	bin := buildBinary(t, repoRoot)
	cmd := exec.Command(bin, "publish")
	cmd.Env = append(os.Environ(),
		"APP_ENV=prod",
		"DATA_PATH="+dataPath,
		"MQTT_BROKER="+host,
		"MQTT_PORT="+port,
		"MQTT_TOPIC=e2e/daily",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("publish failed: %v\n%s", err, out)
	}

	// The manifest is retained, so a late subscriber still receives it.
	opts := paho.NewClientOptions().AddBroker("tcp://" + host + ":" + port).SetClientID("e2e-subscriber")
	client := paho.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	got := make(chan []byte, 1)
	token := client.Subscribe("e2e/daily", 1, func(_ paho.Client, msg paho.Message) {
		select {
		case got <- msg.Payload():
		default:
		}
	})
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	select {
	case payload := <-got:
		var m mqtt.Manifest
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("decode manifest: %v", err)
		}
		if m.Days != 2 || m.From != "2004-03-10" || m.To != "2004-03-11" {
			t.Fatalf("manifest=%+v want 2 days 2004-03-10..2004-03-11", m)
		}
		if m.RunID == "" {
			t.Fatal("manifest has no run_id")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no retained manifest received")
	}
}

func startBroker(t *testing.T) (host, port string) {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{string(mqttPort)},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err = c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, mapped.Port()
}

func writeData(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "air.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return path
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	tmp := t.TempDir()
	out := filepath.Join(tmp, "airquality")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}

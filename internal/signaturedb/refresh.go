// Package signaturedb optionally refreshes the quantization-table,
// ICC camera-profile, and trusted-software JSON bundles from an
// operator-controlled SFTP host at startup. Refresh failures are
// logged and the embedded defaults in internal/config are kept —
// never fatal to Verify.
//
// Adapted from the upload-direction SFTP client used elsewhere in this
// codebase's lineage: same connection-config shape and mutex
// discipline, inverted to a fetch.
package signaturedb

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/sevrusik/turthsnapbot/internal/logger"
)

// Config describes the optional remote signature-database host.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	RemoteDir  string
	Timeout    time.Duration
}

// ConfigFromEnv builds a Config from SIGNATURE_DB_HOST/PORT/USERNAME/
// PASSWORD/REMOTE_DIR. An empty Host (the default when unset) means the
// bundle refresh is disabled; verify.New only dials when Host is set.
func ConfigFromEnv() Config {
	cfg := Config{RemoteDir: "."}

	cfg.Host = os.Getenv("SIGNATURE_DB_HOST")
	cfg.Username = os.Getenv("SIGNATURE_DB_USERNAME")
	cfg.Password = os.Getenv("SIGNATURE_DB_PASSWORD")
	if dir := os.Getenv("SIGNATURE_DB_REMOTE_DIR"); dir != "" {
		cfg.RemoteDir = dir
	}
	if port := os.Getenv("SIGNATURE_DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Port = n
		}
	}

	return cfg
}

// Refresher fetches the three seed-data bundles over SFTP.
type Refresher struct {
	mu     sync.Mutex
	config Config
	log    *logger.Logger
}

func New(cfg Config, log *logger.Logger) *Refresher {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Default()
	}
	return &Refresher{config: cfg, log: log}
}

// Fetch downloads the named bundle (one of "quantization.json",
// "icc.json", "trust.json") into destDir, overwriting any existing
// override file there. A non-nil error means the caller should
// continue with the embedded defaults rather than abort.
func (r *Refresher) Fetch(name, destDir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Host == "" {
		return fmt.Errorf("signaturedb: no remote host configured")
	}

	sshClient, err := r.dial()
	if err != nil {
		return fmt.Errorf("signaturedb: dial: %w", err)
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("signaturedb: sftp client: %w", err)
	}
	defer client.Close()

	remote, err := client.Open(r.config.RemoteDir + "/" + name)
	if err != nil {
		return fmt.Errorf("signaturedb: open remote %s: %w", name, err)
	}
	defer remote.Close()

	local, err := newAtomicWriter(destDir + "/" + name)
	if err != nil {
		return fmt.Errorf("signaturedb: open local %s: %w", name, err)
	}

	if _, err := io.Copy(local, remote); err != nil {
		local.abort()
		return fmt.Errorf("signaturedb: copy %s: %w", name, err)
	}
	if err := local.commit(); err != nil {
		return fmt.Errorf("signaturedb: commit %s: %w", name, err)
	}

	r.log.Info("signaturedb: refreshed bundle", "name", name)
	return nil
}

func (r *Refresher) dial() (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            r.config.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(r.config.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         r.config.Timeout,
	}
	addr := fmt.Sprintf("%s:%d", r.config.Host, r.config.Port)
	return ssh.Dial("tcp", addr, cfg)
}

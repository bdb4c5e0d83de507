package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// Docker secret paths
	DockerSecretsPath        = "/run/secrets"
	TokenSecretName          = "ksm_token"
	ConfigSecretName         = "ksm_config" // #nosec G101 - not a credential, just a filename
	MasterPasswordSecretName = "master_password"
)

// KeeperSecret is the vault credential mounted into a container. Exactly
// one of Token and Config is set.
type KeeperSecret struct {
	Token  string
	Config []byte
}

// LoadDockerSecrets reads the vault credential from dir. A one-time token
// takes precedence over a device configuration.
func LoadDockerSecrets(dir string) (*KeeperSecret, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, fmt.Errorf("secrets directory %s does not exist", dir)
	}

	if token, err := readSecret(dir, TokenSecretName); err == nil {
		return &KeeperSecret{Token: token}, nil
	}
	if config, err := readSecret(dir, ConfigSecretName); err == nil {
		return &KeeperSecret{Config: []byte(config)}, nil
	}

	return nil, errors.New("no valid Docker secrets found")
}

// LoadMasterPasswordFromSecret loads the master password from a Docker secret
func LoadMasterPasswordFromSecret(dir string) (string, error) {
	password, err := readSecret(dir, MasterPasswordSecretName)
	if err != nil {
		return "", errors.New("master password secret not found")
	}
	return password, nil
}

func readSecret(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 - Docker secret path
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("secret %s is empty", name)
	}
	return value, nil
}

// IsRunningInDocker checks if the application is running inside a Docker container
func IsRunningInDocker() bool {
	// Check for Docker-specific files
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	// Check for Docker in /proc/1/cgroup
	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil { // #nosec G304 - well-known proc path
		if strings.Contains(string(cgroup), "docker") {
			return true
		}
	}

	return false
}

// ApplyDockerDefaults adjusts c for a container: listen on all interfaces,
// log JSON for aggregators and never prompt.
func ApplyDockerDefaults(c *Config) {
	if c.Server.Addr == "" || strings.HasPrefix(c.Server.Addr, "127.0.0.1:") {
		c.Server.Addr = "0.0.0.0:8080"
	}
	c.Logging.Format = "json"
	c.Security.BatchMode = true
}

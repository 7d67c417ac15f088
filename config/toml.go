package config

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/creachadair/atomicfile"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes the default config file if there is none.
func EnsureRoot(rootDir string) error {
	for _, dir := range []string{
		rootDir,
		filepath.Join(rootDir, defaultConfigDir),
		filepath.Join(rootDir, defaultDataDir),
	} {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return err
		}
	}

	configFilePath := filepath.Join(rootDir, defaultConfigFilePath)
	if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
		return WriteConfigFile(configFilePath, DefaultConfig())
	}
	return nil
}

// WriteConfigFile renders config using the template and atomically writes it
// to path.
func WriteConfigFile(path string, config *Config) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		return err
	}

	_, err := atomicfile.WriteAll(path, &buffer, 0644)
	return err
}

// Note: any changes to the comments/variables/toml tags
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/lightnode/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.lightnode" by default, but could be changed via $LIGHTNODE_HOME env
# variable or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# Address of the node light blocks are fetched from
rpc-address = "{{ .RPCAddress }}"

# How long a trusted light block can be used to verify newer ones.
# Should be significantly less than the unbonding period of the chain.
trusting-period = "{{ .TrustingPeriod }}"

# Fraction of the trusted validators that must have signed a header
# to skip to it. Must be between 1/3 and 1/1.
trust-level = "{{ .TrustLevel }}"

# How far in the future a header time may be
max-clock-drift = "{{ .MaxClockDrift }}"

# Output level for logging, including package level options
log-level = "{{ .LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .LogFormat }}"

# Database backend of the trusted store: memdb | goleveldb
db-backend = "{{ .DBBackend }}"

# Database directory
db-dir = "{{ .DBPath }}"

# Capacity of the caches of validated and fetched light blocks
cache-size = {{ .CacheSize }}

# How often the latest light block of the remote is verified
sync-interval = "{{ .SyncInterval }}"

# TCP address the trusted store is served on
laddr = "{{ .ListenAddress }}"

# A list of origins a cross-domain request can be executed from
# Default value '[]' disables cors support
cors-allowed-origins = [{{ range .CORSAllowedOrigins }}{{ printf "%q, " . }}{{end}}]

#######################################################################
###                 Subjective Initialization                       ###
#######################################################################
[subjective-init]

# Height of the first trusted light block. Zero resumes from the store.
height = {{ .SubjectiveInit.Height }}

# Hash of its validator set, obtained from a trusted source
validators-hash = "{{ .SubjectiveInit.ValidatorsHash }}"
`

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/smbclient-go/smbclient"
)

// Settings is the merged view of flags, SMBCLIENT_* environment variables
// and the config file, in that order of precedence.
type Settings struct {
	URL        string
	Host       string
	Port       int
	User       string
	Password   string
	Domain     string
	Share      string
	Dialect    string
	MaxCredits uint16
	Socks5     string
	Timeout    time.Duration
	LogLevel   string
	LogFormat  string
}

var settings *Settings

var errNoShare = errors.New("no share given (use --share or a URL with a share)")

func loadSettings(cmd *cobra.Command) (*Settings, error) {
	v := viper.New()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("SMBCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(configDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Settings{
		URL:        v.GetString("url"),
		Host:       v.GetString("host"),
		Port:       v.GetInt("port"),
		User:       v.GetString("user"),
		Password:   v.GetString("password"),
		Domain:     v.GetString("domain"),
		Share:      v.GetString("share"),
		Dialect:    v.GetString("dialect"),
		MaxCredits: v.GetUint16("max-credits"),
		Socks5:     v.GetString("socks5"),
		Timeout:    v.GetDuration("timeout"),
		LogLevel:   v.GetString("log-level"),
		LogFormat:  v.GetString("log-format"),
	}, nil
}

func configDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "smbclient")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "smbclient")
}

// Config turns the settings into a client configuration. Explicit fields
// override what the URL carries.
func (s *Settings) Config() (*smbclient.Config, error) {
	cfg := new(smbclient.Config)

	if s.URL != "" {
		u, err := smbclient.ParseURL(s.URL)
		if err != nil {
			return nil, err
		}
		cfg = u
	}

	override := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	override(&cfg.Host, s.Host)
	override(&cfg.User, s.User)
	override(&cfg.Password, s.Password)
	override(&cfg.Domain, s.Domain)
	override(&cfg.Share, s.Share)
	override(&cfg.Socks5, s.Socks5)

	if s.Port != 0 {
		cfg.Port = s.Port
	}
	if s.MaxCredits != 0 {
		cfg.MaxCreditBalance = s.MaxCredits
	}
	if s.Timeout != 0 {
		cfg.DialTimeout = s.Timeout
	}

	if s.Dialect != "" {
		dialects, err := dialectsUpTo(s.Dialect)
		if err != nil {
			return nil, err
		}
		cfg.Dialects = dialects
	}

	if cfg.Host == "" {
		return nil, errors.New("no server given (use --host or --url)")
	}

	return cfg, nil
}

var knownDialects = []string{"3.1.1", "3.0.2", "3.0", "2.1", "2.0.2"}

// dialectsUpTo lists the known dialects from highest down to 2.0.2, starting
// at highest.
func dialectsUpTo(highest string) ([]uint16, error) {
	top, err := smbclient.ParseDialect(highest)
	if err != nil {
		return nil, err
	}

	var dialects []uint16
	for _, name := range knownDialects {
		d, _ := smbclient.ParseDialect(name)
		if d <= top {
			dialects = append(dialects, d)
		}
	}
	return dialects, nil
}

func readPassword(user string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", nil
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// connect logs in and, when needShare is set, connects the configured share.
func connect(ctx context.Context, needShare bool) (*smbclient.Client, error) {
	cfg, err := settings.Config()
	if err != nil {
		return nil, err
	}

	if needShare && cfg.Share == "" {
		return nil, errNoShare
	}
	if !needShare {
		cfg.Share = ""
	}

	if cfg.User != "" && cfg.Password == "" {
		pw, err := readPassword(cfg.User)
		if err != nil {
			return nil, err
		}
		cfg.Password = pw
	}

	return smbclient.Connect(ctx, cfg)
}

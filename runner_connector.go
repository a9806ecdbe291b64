package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/snowflakedb/gosnowflake"
)

// RunnerConnector is the row oriented backend: database/sql over gosnowflake,
// counting rows without materializing batches.
type RunnerConnector struct {
	Timeout time.Duration
}

type InstanceConnector struct {
	config gosnowflake.Config
	reuse  bool
	db     *sql.DB
}

func (r *RunnerConnector) Name() string { return string(VariantConnector) }

// snowflakeConfig applies the key pair policy of this backend: only passphrase
// protected keys are accepted and the profile password unlocks them.
func (r *RunnerConnector) snowflakeConfig(profile Profile) (gosnowflake.Config, error) {
	if profile.Account == "" {
		return gosnowflake.Config{}, fmt.Errorf("%w: account is required", ErrMissingCredential)
	}
	if profile.User == "" {
		return gosnowflake.Config{}, fmt.Errorf("%w: user is required", ErrMissingCredential)
	}
	config := gosnowflake.Config{
		Account:       profile.Account,
		User:          profile.User,
		Role:          profile.Role,
		Warehouse:     profile.Warehouse,
		Database:      profile.Database,
		Schema:        profile.Schema,
		Host:          profile.Host,
		Port:          profile.Port,
		Protocol:      profile.Protocol,
		ClientTimeout: r.Timeout,
		Params:        make(map[string]*string),
	}
	if profile.ConnectTimeout > 0 {
		config.LoginTimeout = time.Duration(profile.ConnectTimeout) * time.Second
	}
	if profile.ClientSessionKeepAlive != nil {
		keepAlive := strconv.FormatBool(*profile.ClientSessionKeepAlive)
		config.Params["client_session_keep_alive"] = &keepAlive
	}

	switch {
	case profile.PrivateKey != "":
		switch ClassifyKey(profile.PrivateKey) {
		case KeyEncrypted:
			key, err := ParsePrivateKey(profile.PrivateKey, profile.Password)
			if err != nil {
				return gosnowflake.Config{}, err
			}
			config.Authenticator = gosnowflake.AuthTypeJwt
			config.PrivateKey = key
		case KeyPlain:
			return gosnowflake.Config{}, fmt.Errorf(
				"%w: %v KeyPair authentication requires an encrypted private key (ENCRYPTED PRIVATE KEY). "+
					"The provided key appears to be unencrypted. Please use an encrypted key or use password authentication instead",
				ErrUnsupportedKeyFormat, VariantConnector,
			)
		default:
			return gosnowflake.Config{}, fmt.Errorf("%w: invalid private key format", ErrUnsupportedKeyFormat)
		}
	case profile.Password != "":
		config.Authenticator = gosnowflake.AuthTypeSnowflake
		config.Password = profile.Password
	default:
		return gosnowflake.Config{}, fmt.Errorf("%w: either password or private_key is required for authentication", ErrMissingCredential)
	}
	return config, nil
}

func (r *RunnerConnector) Init(profile Profile) (Instance, error) {
	config, err := r.snowflakeConfig(profile)
	if err != nil {
		return nil, err
	}
	return &InstanceConnector{config: config, reuse: profile.ReuseConnections}, nil
}

func (i *InstanceConnector) Name() string { return string(VariantConnector) }

func (i *InstanceConnector) open() (*sql.DB, func() error) {
	if i.reuse && i.db != nil {
		return i.db, nil
	}
	db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, i.config))
	if i.reuse {
		db.SetMaxOpenConns(1)
		i.db = db
		return db, nil
	}
	return db, db.Close
}

func (i *InstanceConnector) Execute(ctx context.Context, query string) (*Result, error) {
	db, release := i.open()
	conn, err := db.Conn(ctx)
	if err != nil {
		closeAll(release)()
		return nil, fmt.Errorf("%w: failed to create session: %w", ErrConnection, err)
	}
	done := closeAll(conn.Close, release)

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		done()
		return nil, fmt.Errorf("%w: %w", ErrQueryExecution, err)
	}
	var count int64
	for rows.Next() {
		count++
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		done()
		return nil, fmt.Errorf("%w: failed to fetch rows: %w", ErrQueryExecution, err)
	}
	return NewCountResult(count, done), nil
}

func (i *InstanceConnector) Close() error {
	if i.db == nil {
		return nil
	}
	err := i.db.Close()
	i.db = nil
	return err
}

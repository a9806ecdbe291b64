package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-adbc/go/adbc"
	"github.com/apache/arrow-adbc/go/adbc/driver/snowflake"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

type RunnerADBC struct {
	Timeout   time.Duration
	Allocator memory.Allocator
}

type InstanceADBC struct {
	db    adbc.Database
	reuse bool
	cnxn  adbc.Connection
}

func (r *RunnerADBC) Name() string { return string(VariantADBC) }

// databaseOptions maps the profile onto ADBC snowflake database options.
func (r *RunnerADBC) databaseOptions(profile Profile) (map[string]string, error) {
	opts := make(map[string]string)
	set := func(key, value string) {
		if value != "" {
			opts[key] = value
		}
	}
	set(snowflake.OptionAccount, profile.Account)
	set(adbc.OptionKeyUsername, profile.User)
	set(snowflake.OptionRole, profile.Role)
	set(snowflake.OptionWarehouse, profile.Warehouse)
	set(snowflake.OptionDatabase, profile.Database)
	set(snowflake.OptionSchema, profile.Schema)
	set(snowflake.OptionHost, profile.Host)
	set(snowflake.OptionProtocol, profile.Protocol)
	if profile.Port > 0 {
		set(snowflake.OptionPort, strconv.Itoa(profile.Port))
	}

	switch {
	case profile.PrivateKey != "":
		key := strings.TrimSpace(profile.PrivateKey)
		format := ClassifyKey(key)
		if format == KeyInvalid {
			return nil, fmt.Errorf("%w: invalid private key format", ErrUnsupportedKeyFormat)
		}
		opts[snowflake.OptionAuthType] = snowflake.OptionValueAuthJwt
		opts[snowflake.OptionJwtPrivateKeyPkcs8Value] = key
		if format == KeyEncrypted {
			set(snowflake.OptionJwtPrivateKeyPkcs8Password, profile.Password)
		}
	case profile.Password != "":
		opts[snowflake.OptionAuthType] = snowflake.OptionValueAuthSnowflake
		opts[adbc.OptionKeyPassword] = profile.Password
	default:
		return nil, fmt.Errorf("%w: either password or private_key is required for authentication", ErrMissingCredential)
	}

	if profile.ClientSessionKeepAlive != nil {
		opts[snowflake.OptionKeepSessionAlive] = strconv.FormatBool(*profile.ClientSessionKeepAlive)
	}
	if profile.ConnectTimeout > 0 {
		opts[snowflake.OptionLoginTimeout] = (time.Duration(profile.ConnectTimeout) * time.Second).String()
	}
	if r.Timeout > 0 {
		opts[snowflake.OptionRequestTimeout] = r.Timeout.String()
	}
	return opts, nil
}

func (r *RunnerADBC) Init(profile Profile) (Instance, error) {
	opts, err := r.databaseOptions(profile)
	if err != nil {
		return nil, err
	}
	allocator := r.Allocator
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	db, err := snowflake.NewDriver(allocator).NewDatabase(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build database: %w", ErrConnection, err)
	}
	Logger.Debugf("initialized adbc database for account %v", profile.Account)
	return &InstanceADBC{db: db, reuse: profile.ReuseConnections}, nil
}

func (i *InstanceADBC) Name() string { return string(VariantADBC) }

// connect returns the connection to use and the function releasing it after the query.
func (i *InstanceADBC) connect(ctx context.Context) (adbc.Connection, func() error, error) {
	if i.reuse && i.cnxn != nil {
		return i.cnxn, nil, nil
	}
	cnxn, err := i.db.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create connection: %w", ErrConnection, err)
	}
	if i.reuse {
		i.cnxn = cnxn
		return cnxn, nil, nil
	}
	return cnxn, cnxn.Close, nil
}

func (i *InstanceADBC) Execute(ctx context.Context, query string) (*Result, error) {
	cnxn, release, err := i.connect(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := cnxn.NewStatement()
	if err != nil {
		closeAll(release)()
		return nil, fmt.Errorf("%w: failed to create statement: %w", ErrQueryExecution, err)
	}
	if err := stmt.SetSqlQuery(query); err != nil {
		closeAll(stmt.Close, release)()
		return nil, fmt.Errorf("%w: failed to set SQL query: %w", ErrQueryExecution, err)
	}
	reader, _, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		closeAll(stmt.Close, release)()
		return nil, fmt.Errorf("%w: failed to execute query: %w", ErrQueryExecution, err)
	}
	return NewColumnarResult(reader, closeAll(stmt.Close, release)), nil
}

func (i *InstanceADBC) Close() error {
	var closers []func() error
	if i.cnxn != nil {
		closers = append(closers, i.cnxn.Close)
		i.cnxn = nil
	}
	closers = append(closers, i.db.Close)
	return closeAll(closers...)()
}

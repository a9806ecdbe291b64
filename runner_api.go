package main

import (
	"context"
	"fmt"
	"time"
)

// RunnerAPI drives the REST session protocol either for Arrow rowsets or for JSON rowsets.
type RunnerAPI struct {
	Variant Variant
	Shape   Shape
	Timeout time.Duration
}

type InstanceAPI struct {
	variant Variant
	shape   Shape
	client  *APIClient
	reuse   bool
	session *APISession
}

func (r *RunnerAPI) Name() string { return string(r.Variant) }

func (r *RunnerAPI) apiConfig(profile Profile) (APIConfig, error) {
	if profile.Account == "" {
		return APIConfig{}, fmt.Errorf("%w: account is required", ErrMissingCredential)
	}
	if profile.User == "" {
		return APIConfig{}, fmt.Errorf("%w: user is required", ErrMissingCredential)
	}
	config := APIConfig{
		BaseURL:   BaseURL(profile),
		Account:   profile.Account,
		User:      profile.User,
		Role:      profile.Role,
		Warehouse: profile.Warehouse,
		Database:  profile.Database,
		Schema:    profile.Schema,
		KeepAlive: profile.ClientSessionKeepAlive,
		Timeout:   r.Timeout,
	}
	switch {
	case profile.PrivateKey != "":
		key, err := ParsePrivateKey(profile.PrivateKey, profile.Password)
		if err != nil {
			return APIConfig{}, err
		}
		config.PrivateKey = key
	case profile.Password != "":
		config.Password = profile.Password
	default:
		return APIConfig{}, fmt.Errorf("%w: either password or private_key is required for authentication", ErrMissingCredential)
	}
	return config, nil
}

func (r *RunnerAPI) Init(profile Profile) (Instance, error) {
	config, err := r.apiConfig(profile)
	if err != nil {
		return nil, err
	}
	return &InstanceAPI{
		variant: r.Variant,
		shape:   r.Shape,
		client:  NewAPIClient(config),
		reuse:   profile.ReuseConnections,
	}, nil
}

func (i *InstanceAPI) Name() string { return string(i.variant) }

func (i *InstanceAPI) login(ctx context.Context) (*APISession, func() error, error) {
	if i.reuse && i.session != nil {
		return i.session, nil, nil
	}
	session, err := i.client.Login(ctx)
	if err != nil {
		return nil, nil, err
	}
	if i.reuse {
		i.session = session
		return session, nil, nil
	}
	return session, func() error { return session.Close(context.Background()) }, nil
}

func (i *InstanceAPI) mismatch(got Shape) error {
	err := &ShapeMismatchError{Client: string(i.variant), Got: got.String(), Expected: i.shape.String()}
	switch i.shape {
	case ShapeArrow:
		err.Suggest = string(VariantAPIJSON)
		err.Hint = "ensure your query returns Arrow format (SELECT queries typically return Arrow)"
	case ShapeJSON:
		err.Suggest = string(VariantAPIArrow)
		err.Hint = "use a non-SELECT query (like SHOW, DESCRIBE) which typically return JSON"
	}
	return err
}

func (i *InstanceAPI) Execute(ctx context.Context, query string) (*Result, error) {
	session, release, err := i.login(ctx)
	if err != nil {
		return nil, err
	}
	data, err := session.Query(ctx, query)
	if err != nil {
		closeAll(release)()
		return nil, err
	}

	shape := data.Shape()
	switch {
	case shape == ShapeEmpty:
		return NewCountResult(0, release), nil
	case shape != i.shape:
		closeAll(release)()
		return nil, i.mismatch(shape)
	case shape == ShapeArrow:
		reader, err := session.ArrowReader(ctx, data)
		if err != nil {
			closeAll(release)()
			return nil, err
		}
		return NewColumnarResult(reader, release), nil
	}

	count, err := session.CountJSON(ctx, data)
	if err != nil {
		closeAll(release)()
		return nil, err
	}
	return NewCountResult(count, release), nil
}

func (i *InstanceAPI) Close() error {
	if i.session == nil {
		return nil
	}
	err := i.session.Close(context.Background())
	i.session = nil
	return err
}

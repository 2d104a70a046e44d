package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	provcommand "github.com/goliatone/go-provisioning/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchWithResult dispatches msg and returns whatever the command stored on
// the context result collector.
func DispatchWithResult[T any, R any](ctx context.Context, msg T) (R, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	collector := command.NewResult[R]()
	ctx = command.ContextWithResult(ctx, collector)
	err := Dispatch(ctx, msg)
	value, ok := collector.Load()
	return value, ok, err
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions groups the handles returned by RegisterProvisioning.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterProvisioning subscribes every provisioning command. dispatcher may
// be nil, in which case the webhook command is skipped.
func RegisterProvisioning(
	adapter *RegistryAdapter,
	service provcommand.ProvisioningService,
	dispatcher provcommand.WebhookDispatcher,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if service == nil {
		return nil, fmt.Errorf("gocommand: provisioning service is required")
	}
	var subs Subscriptions
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	if err := register(RegisterAndSubscribe(adapter, provcommand.NewProvisionLocationCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, provcommand.NewInstallLocationsCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, provcommand.NewUninstallCommand(service), runnerOpts...)); err != nil {
		return nil, err
	}
	if dispatcher != nil {
		if err := register(RegisterAndSubscribe(adapter, provcommand.NewDispatchWebhookCommand(dispatcher), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

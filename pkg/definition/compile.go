package definition

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/action"
	"github.com/weftworks/loom/pkg/domain"
	"github.com/weftworks/loom/pkg/machine"
)

// Compiler turns definitions into runnable machines.
type Compiler struct {
	logger *slog.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLogger sets the compiler logger, used for non-fatal warnings such as
// transitions to undeclared states.
func WithLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) { c.logger = logger }
}

// NewCompiler creates a Compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds a machine from the definition. Targets naming undeclared
// states are warned about but not rejected: the run loop halts without error
// if the model ever picks one.
func (c *Compiler) Compile(def *Definition, opts ...machine.Option) (*machine.Machine, error) {
	declared := make(map[string]bool, len(def.States))
	for _, sd := range def.States {
		declared[sd.Name] = true
	}

	states := make([]*machine.State, 0, len(def.States))
	for _, sd := range def.States {
		entry, err := c.compileEntry(sd.Entry)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", sd.Name, err)
		}

		transitions := make([]machine.Transition, 0, len(sd.Transitions))
		for _, td := range sd.Transitions {
			if td.To != machine.AwaitInputTarget && !declared[td.To] {
				c.logger.Warn("transition targets undeclared state", "state", sd.Name, "to", td.To)
			}
			transitions = append(transitions, machine.Transition{To: td.To, Description: td.Description})
		}

		states = append(states, &machine.State{
			Name:              sd.Name,
			Description:       sd.Description,
			Entry:             entry,
			Transitions:       transitions,
			End:               sd.End,
			ShowHistory:       sd.ShowHistory,
			SuppressResources: sd.SuppressResources,
			PreInstructions:   sd.PreInstructions,
			PostInstructions:  sd.PostInstructions,
			RouteToStatus:     sd.RouteToStatus,
			Passthrough:       sd.Passthrough,
			Async:             sd.Async,
			FailFast:          sd.FailFast,
		})
	}

	machineOpts := append([]machine.Option{
		machine.WithDescription(def.Description),
		machine.WithLogger(c.logger),
	}, opts...)
	if def.MaxTransitions > 0 {
		machineOpts = append(machineOpts, machine.WithMaxTransitions(def.MaxTransitions))
	}
	return machine.New(def.Name, def.Start, states, machineOpts...)
}

// Entry action specs, decoded from the definition's open maps.

type promptSpec struct {
	Messages        []messageSpec `mapstructure:"messages"`
	OutputKey       string        `mapstructure:"outputKey"`
	AppendToHistory bool          `mapstructure:"appendToHistory"`
	Retries         int           `mapstructure:"retries"`
}

type structuredSpec struct {
	Messages        []messageSpec `mapstructure:"messages"`
	Fields          []string      `mapstructure:"fields"`
	Require         []string      `mapstructure:"require"`
	AppendToHistory bool          `mapstructure:"appendToHistory"`
	Retries         int           `mapstructure:"retries"`
}

type retrieveSpec struct {
	Query          string `mapstructure:"query"`
	DefaultMessage string `mapstructure:"defaultMessage"`
	IncludeResults bool   `mapstructure:"includeResults"`
	CaptureKey     string `mapstructure:"captureKey"`
	TopK           int    `mapstructure:"topK"`
	// Resources accepts bare identifiers or {id, name, type} objects.
	Resources []any `mapstructure:"resources"`
}

type statusSpec struct {
	ID          string         `mapstructure:"id"`
	Summary     string         `mapstructure:"summary"`
	Passthrough bool           `mapstructure:"passthrough"`
	Sub         map[string]any `mapstructure:"sub"`
}

type fanoutSpec struct {
	Prefix    string         `mapstructure:"prefix"`
	OutputKey string         `mapstructure:"outputKey"`
	Sub       map[string]any `mapstructure:"sub"`
}

type groupSpec struct {
	Actions []map[string]any `mapstructure:"actions"`
}

type messageSpec struct {
	Role    string `mapstructure:"role"`
	Content string `mapstructure:"content"`
}

func (c *Compiler) compileEntry(spec map[string]any) (action.Action, error) {
	if len(spec) == 0 {
		return nil, nil
	}

	kind, _ := spec["type"].(string)
	switch strings.ToLower(kind) {
	case "prompt":
		var s promptSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		return action.Prompt{
			Messages:        messages(s.Messages),
			OutputKey:       s.OutputKey,
			AppendToHistory: s.AppendToHistory,
			Retries:         s.Retries,
		}, nil

	case "structured":
		var s structuredSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		require := s.Require
		return action.StructuredPrompt{
			Messages: messages(s.Messages),
			Fields:   s.Fields,
			Validate: func(fields map[string]string) bool {
				for _, f := range require {
					if strings.TrimSpace(fields[f]) == "" {
						return false
					}
				}
				return true
			},
			AppendToHistory: s.AppendToHistory,
			Retries:         s.Retries,
		}, nil

	case "retrieve":
		var s retrieveSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		raw := make([]any, 0, len(s.Resources))
		for _, r := range s.Resources {
			if m, ok := r.(map[string]any); ok {
				var ref domain.ResourceRef
				if err := decode(m, &ref); err != nil {
					return nil, err
				}
				raw = append(raw, ref)
				continue
			}
			raw = append(raw, r)
		}
		return action.Retrieve{
			Resources:      domain.NormalizeResources(raw),
			Query:          s.Query,
			DefaultMessage: s.DefaultMessage,
			IncludeResults: s.IncludeResults,
			CaptureKey:     s.CaptureKey,
			TopK:           s.TopK,
		}, nil

	case "status":
		var s statusSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		sub, err := c.compileEntry(s.Sub)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, fmt.Errorf("status action requires a sub action")
		}
		return action.WithStatus{
			ID:          s.ID,
			Summary:     s.Summary,
			Passthrough: s.Passthrough,
			Sub:         sub,
		}, nil

	case "map":
		var s fanoutSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		sub, err := c.compileEntry(s.Sub)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, fmt.Errorf("map action requires a sub action")
		}
		return action.MapKeys{Prefix: s.Prefix, Sub: sub, OutputKey: s.OutputKey}, nil

	case "reduce":
		var s fanoutSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		sub, err := c.compileEntry(s.Sub)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, fmt.Errorf("reduce action requires a sub action")
		}
		return action.ReduceKeys{Prefix: s.Prefix, Sub: sub, OutputKey: s.OutputKey}, nil

	case "chain", "parallel":
		var s groupSpec
		if err := decode(spec, &s); err != nil {
			return nil, err
		}
		children := make([]action.Action, 0, len(s.Actions))
		for i, sub := range s.Actions {
			child, err := c.compileEntry(sub)
			if err != nil {
				return nil, fmt.Errorf("child %d: %w", i, err)
			}
			if child != nil {
				children = append(children, child)
			}
		}
		if strings.ToLower(kind) == "parallel" {
			return action.Parallel(children), nil
		}
		return action.Chain(children), nil

	default:
		return nil, fmt.Errorf("unknown action type %q", kind)
	}
}

func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: false,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode action spec: %w", err)
	}
	return nil
}

func messages(specs []messageSpec) []domain.Message {
	out := make([]domain.Message, 0, len(specs))
	for _, m := range specs {
		role := domain.Role(m.Role)
		if role == "" {
			role = domain.RoleUser
		}
		out = append(out, domain.Message{Role: role, Content: m.Content})
	}
	return out
}

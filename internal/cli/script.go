package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// RootAlias names the root node inside a script.
const RootAlias = "root"

// Script is a sequence of engine commands read from YAML:
//
//	steps:
//	  - op: add_node
//	    as: review
//	    kind: approval
//	  - op: update_node
//	    node: $review
//	    patch: {title: Review}
//	  - op: save
//
// A step with "as" binds the id it produced; "$name" refers to it later.
type Script struct {
	Steps []Step
}

// Step is one decoded command.
type Step struct {
	Op      string
	Alias   string
	Command domain.Command
}

var commandFactories = map[string]func() domain.Command{
	"add_node":    func() domain.Command { return &domain.AddNode{} },
	"update_node": func() domain.Command { return &domain.UpdateNodeData{} },
	"move_node":   func() domain.Command { return &domain.MoveNode{} },
	"delete_node": func() domain.Command { return &domain.DeleteNode{} },
	"connect":     func() domain.Command { return &domain.Connect{} },
	"delete_edge": func() domain.Command { return &domain.DeleteEdge{} },
	"select":      func() domain.Command { return &domain.Select{} },
	"undo":        func() domain.Command { return &domain.Undo{} },
	"redo":        func() domain.Command { return &domain.Redo{} },
	"save":        func() domain.Command { return &domain.Save{} },
	"reload":      func() domain.Command { return &domain.Reload{} },
	"rename":      func() domain.Command { return &domain.Rename{} },
}

type rawScript struct {
	Steps []map[string]any `yaml:"steps"`
}

// ParseScript decodes a YAML edit script. Unknown ops and unknown keys fail.
func ParseScript(r io.Reader) (*Script, error) {
	var raw rawScript
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &Script{}, nil
		}
		return nil, fmt.Errorf("%w: invalid script: %v", domain.ErrInvalidRequest, err)
	}

	script := &Script{Steps: make([]Step, 0, len(raw.Steps))}
	var errs []error
	for i, fields := range raw.Steps {
		step, err := decodeStep(fields)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
			continue
		}
		script.Steps = append(script.Steps, step)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, errors.Join(errs...))
	}
	return script, nil
}

func decodeStep(fields map[string]any) (Step, error) {
	op, _ := fields["op"].(string)
	alias, _ := fields["as"].(string)
	factory, ok := commandFactories[op]
	if !ok {
		return Step{}, fmt.Errorf("unknown op %q", op)
	}

	args := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "op" && k != "as" {
			args[k] = v
		}
	}

	target := factory()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Step{}, err
	}
	if err := decoder.Decode(args); err != nil {
		return Step{}, fmt.Errorf("%s: %w", op, err)
	}
	return Step{Op: op, Alias: alias, Command: deref(target)}, nil
}

// deref turns the decode target back into the value type Dispatch expects.
func deref(c domain.Command) domain.Command {
	switch v := c.(type) {
	case *domain.AddNode:
		return *v
	case *domain.UpdateNodeData:
		return *v
	case *domain.MoveNode:
		return *v
	case *domain.DeleteNode:
		return *v
	case *domain.Connect:
		return *v
	case *domain.DeleteEdge:
		return *v
	case *domain.Select:
		return *v
	case *domain.Undo:
		return *v
	case *domain.Redo:
		return *v
	case *domain.Save:
		return *v
	case *domain.Reload:
		return *v
	case *domain.Rename:
		return *v
	}
	return c
}

// StepResult records what one step produced.
type StepResult struct {
	Op    string `json:"op"`
	Alias string `json:"as,omitempty"`
	ID    string `json:"id,omitempty"`
}

// Apply runs the script against eng, resolving $aliases as it goes.
// It stops at the first failing step.
func Apply(ctx context.Context, eng *blueprint.Engine, script *Script, logger *slog.Logger) ([]StepResult, error) {
	aliases := map[string]string{}
	if root, ok := eng.Status().Graph.Root(); ok {
		aliases[RootAlias] = root.ID
	}

	results := make([]StepResult, 0, len(script.Steps))
	for i, step := range script.Steps {
		cmd, err := resolve(step.Command, aliases)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		res, err := eng.Dispatch(ctx, cmd)
		if err != nil {
			return results, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		if _, isConnect := cmd.(domain.Connect); isConnect && res.ID == "" {
			return results, fmt.Errorf("step %d (%s): %w: edge rejected", i+1, step.Op, domain.ErrInvalidRequest)
		}
		if step.Alias != "" {
			aliases[step.Alias] = res.ID
		}
		logger.Debug("script step applied", "step", i+1, "op", step.Op, "id", res.ID)
		results = append(results, StepResult{Op: step.Op, Alias: step.Alias, ID: res.ID})
	}
	return results, nil
}

func resolve(cmd domain.Command, aliases map[string]string) (domain.Command, error) {
	var err error
	ref := func(s string) string {
		name, ok := strings.CutPrefix(s, "$")
		if !ok || err != nil {
			return s
		}
		id, known := aliases[name]
		if !known {
			err = fmt.Errorf("%w: unknown alias $%s", domain.ErrInvalidRequest, name)
		}
		return id
	}

	switch c := cmd.(type) {
	case domain.AddNode:
		c.ParentID = ref(c.ParentID)
		cmd = c
	case domain.UpdateNodeData:
		c.NodeID = ref(c.NodeID)
		cmd = c
	case domain.MoveNode:
		c.NodeID = ref(c.NodeID)
		cmd = c
	case domain.DeleteNode:
		c.NodeID = ref(c.NodeID)
		cmd = c
	case domain.Connect:
		c.Source = ref(c.Source)
		c.Target = ref(c.Target)
		cmd = c
	case domain.DeleteEdge:
		c.EdgeID = ref(c.EdgeID)
		cmd = c
	case domain.Select:
		c.NodeID = ref(c.NodeID)
		cmd = c
	}
	return cmd, err
}

// SettledErr reports a session that went idle without persisting its edits.
func SettledErr(st domain.EditorState) error {
	switch st.Status {
	case domain.SyncConflict:
		return fmt.Errorf("%w: reload required", domain.ErrConflict)
	case domain.SyncError:
		return fmt.Errorf("edits not saved: %s", st.LastError)
	}
	return nil
}

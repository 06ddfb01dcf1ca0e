package dsl

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/openfroyo/suite/pkg/script"
)

type builderMethod func(thread *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error

var builderMethods = map[string]builderMethod{
	"install":          packageMethod((*script.Script).Install),
	"purge":            packageMethod((*script.Script).Purge),
	"remove":           packageMethod((*script.Script).Remove),
	"update":           noArgMethod((*script.Script).Update),
	"upgrade":          noArgMethod((*script.Script).Upgrade),
	"dist_upgrade":     noArgMethod((*script.Script).DistUpgrade),
	"dpkg_install":     packageMethod((*script.Script).DpkgInstall),
	"remote_install":   packageMethod((*script.Script).RemoteInstall),
	"exec":             builderExec,
	"setenv":           builderSetenv,
	"env":              builderSetenv,
	"service":          builderService,
	"apt_key":          builderAptKey,
	"aptkey":           builderAptKey,
	"wget":             downloadMethod((*script.Script).Wget),
	"curl":             downloadMethod((*script.Script).Curl),
	"if_installed":     conditionMethod((*script.Script).IfInstalled),
	"unless_installed": conditionMethod((*script.Script).UnlessInstalled),
}

// builder exposes a script.Script to Starlark. Every method returns the
// builder itself.
type builder struct {
	s *script.Script
}

var _ starlark.HasAttrs = (*builder)(nil)

func newBuilder(s *script.Script) *builder {
	return &builder{s: s}
}

func (b *builder) String() string        { return "<script>" }
func (b *builder) Type() string          { return "script" }
func (b *builder) Freeze()               {}
func (b *builder) Truth() starlark.Bool  { return starlark.Bool(!b.s.Empty()) }
func (b *builder) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: script") }

func (b *builder) Attr(name string) (starlark.Value, error) {
	method, ok := builderMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := method(thread, b, fn, args, kwargs); err != nil {
			return nil, err
		}
		return b, nil
	}), nil
}

func (b *builder) AttrNames() []string {
	names := make([]string, 0, len(builderMethods))
	for name := range builderMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// execOptions reads the sudo= and user= keywords. Naming a user implies sudo.
func execOptions(sudo bool, user string) []script.ExecOption {
	switch {
	case user != "":
		return []script.ExecOption{script.SudoUser(user)}
	case sudo:
		return []script.ExecOption{script.Sudo()}
	default:
		return nil
	}
}

func packageMethod(op func(*script.Script, ...string) *script.Script) builderMethod {
	return func(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		if len(kwargs) > 0 {
			return fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
		}
		names, err := stringArgs(fn.Name(), args)
		if err != nil {
			return err
		}
		op(b.s, names...)
		return nil
	}
}

func noArgMethod(op func(*script.Script) *script.Script) builderMethod {
	return func(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
			return err
		}
		op(b.s)
		return nil
	}
}

func downloadMethod(op func(*script.Script, string, string, ...script.ExecOption) *script.Script) builderMethod {
	return func(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var (
			from, to string
			sudo     bool
			user     string
		)
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "src", &from, "dest", &to, "sudo?", &sudo, "user?", &user); err != nil {
			return err
		}
		op(b.s, from, to, execOptions(sudo, user)...)
		return nil
	}
}

func conditionMethod(op func(*script.Script, []string, func(*script.Script)) *script.Script) builderMethod {
	return func(thread *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var (
			packages *starlark.List
			body     starlark.Callable
		)
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "packages", &packages, "body", &body); err != nil {
			return err
		}
		names, err := stringList(fn.Name()+": packages", packages)
		if err != nil {
			return err
		}

		var bodyErr error
		op(b.s, names, func(nested *script.Script) {
			_, bodyErr = starlark.Call(thread, body, starlark.Tuple{newBuilder(nested)}, nil)
		})
		return bodyErr
	}
}

func builderExec(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var (
		text string
		sudo bool
		user string
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "text", &text, "sudo?", &sudo, "user?", &user); err != nil {
		return err
	}
	b.s.Exec(text, execOptions(sudo, user)...)
	return nil
}

func builderSetenv(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var key, value string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "key", &key, "value", &value); err != nil {
		return err
	}
	b.s.Setenv(key, value)
	return nil
}

func builderService(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var name, action string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "action", &action); err != nil {
		return err
	}
	b.s.Service(name, action)
	return nil
}

func builderAptKey(_ *starlark.Thread, b *builder, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var keyserver string
	if err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "keyserver?", &keyserver); err != nil {
		return err
	}
	keys, err := stringArgs(fn.Name(), args)
	if err != nil {
		return err
	}
	b.s.AptKeyFrom(keyserver, keys...)
	return nil
}

func stringArgs(name string, args starlark.Tuple) ([]string, error) {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		s, ok := starlark.AsString(arg)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %s, want string", name, i+1, arg.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

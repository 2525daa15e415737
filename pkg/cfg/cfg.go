package cfg

import (
	"flag"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ConfigFileFlag names the flag pointing at the YAML config file.
const ConfigFileFlag = "config.file"

// Registerer is a configuration that registers its own flags, binding
// every flag to a field of the configuration.
type Registerer interface {
	RegisterFlags(f *flag.FlagSet)
}

// Source is a generic configuration source. It is passed a pointer to the
// destination and may write to it. The destination may already contain data
// from previous sources.
type Source func(interface{}) error

// Unmarshal merges the values of the various configuration sources and sets them on
// dst. Later sources win.
func Unmarshal(dst interface{}, sources ...Source) error {
	if len(sources) == 0 {
		panic("No sources supplied to cfg.Unmarshal(). This is most likely a programming issue and should never happen. Check the code!")
	}
	for _, source := range sources {
		if err := source(dst); err != nil {
			return errors.Wrap(err, "sourcing")
		}
	}
	return nil
}

// Parse loads dst from flag defaults, then the file named by -config.file,
// then the flags given in args.
func Parse(dst Registerer, fs *flag.FlagSet, args []string) error {
	configFile := fs.String(ConfigFileFlag, "", "YAML file to load configuration from. Flags given on the command line override it.")
	return Unmarshal(dst,
		Defaults(fs),
		YAMLFlag(fs, args, configFile),
		Flags(fs, args),
	)
}

// Defaults registers the flags of dst on fs, which sets every field to its
// flag default.
func Defaults(fs *flag.FlagSet) Source {
	return func(dst interface{}) error {
		r, ok := dst.(Registerer)
		if !ok {
			return errors.Errorf("%T does not register flags", dst)
		}
		r.RegisterFlags(fs)
		return nil
	}
}

// YAMLFlag loads the file named by the configFile flag, if any.
func YAMLFlag(fs *flag.FlagSet, args []string, configFile *string) Source {
	return func(dst interface{}) error {
		// The flags are parsed once to find the file. They are parsed again
		// by Flags so that they override its content.
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *configFile == "" {
			return nil
		}
		return YAML(*configFile)(dst)
	}
}

// YAML loads the file at path. Unknown fields are an error.
func YAML(path string) Source {
	return func(dst interface{}) error {
		buf, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "reading config file")
		}
		return dYAML(buf)(dst)
	}
}

func dYAML(buf []byte) Source {
	return func(dst interface{}) error {
		return errors.Wrap(yaml.UnmarshalStrict(buf, dst), "parsing config file")
	}
}

// Flags sets the fields bound to the flags given in args.
func Flags(fs *flag.FlagSet, args []string) Source {
	return func(interface{}) error {
		return fs.Parse(args)
	}
}

package script

import (
	"strings"
)

// DefaultKeyserver is used by AptKey when no keyserver is given.
const DefaultKeyserver = "keyserver.ubuntu.com"

// AptKey imports keys from the default keyserver.
func (s *Script) AptKey(keys ...string) *Script {
	return s.AptKeyFrom("", keys...)
}

// AptKeyFrom imports keys from keyserver, or the default when empty.
func (s *Script) AptKeyFrom(keyserver string, keys ...string) *Script {
	if len(keys) == 0 {
		return s
	}
	if keyserver == "" {
		keyserver = DefaultKeyserver
	}
	return s.exec("apt-key adv --keyserver "+keyserver+" --recv-keys "+strings.Join(keys, " "), Sudo())
}

// Wget ensures wget is installed and downloads from into to.
func (s *Script) Wget(from, to string, opts ...ExecOption) *Script {
	s.Install("wget")
	return s.exec("wget -O "+to+" "+from, opts...)
}

// Curl ensures curl is installed and downloads from into to.
func (s *Script) Curl(from, to string, opts ...ExecOption) *Script {
	s.Install("curl")
	return s.exec("curl -# -o "+to+" "+from, opts...)
}

// Service appends a privileged service control command.
func (s *Script) Service(name, action string) *Script {
	return s.exec("service "+name+" "+action, Sudo())
}

package script

import (
	"fmt"
	"strings"
)

// IfInstalled appends a conditional that runs body only when every named
// package is installed.
func (s *Script) IfInstalled(packages []string, body func(*Script)) *Script {
	return s.checkInstalled(true, packages, body)
}

// UnlessInstalled appends a conditional that runs body only when none of the
// named packages is installed.
func (s *Script) UnlessInstalled(packages []string, body func(*Script)) *Script {
	return s.checkInstalled(false, packages, body)
}

func (s *Script) checkInstalled(installed bool, packages []string, body func(*Script)) *Script {
	if len(packages) == 0 {
		return s
	}

	block := s.nested()
	if body != nil {
		body(block)
	}

	s.commands = append(s.commands, command{
		cond: InstalledCondition(installed, packages...),
		body: block,
	})
	return s
}

// InstalledCondition builds one dpkg predicate per package, joined by &&.
func InstalledCondition(installed bool, packages ...string) string {
	want := "0"
	if installed {
		want = "1"
	}

	clauses := make([]string, 0, len(packages))
	for _, pkg := range packages {
		clauses = append(clauses, fmt.Sprintf(
			`[ "$(dpkg -s %s > /dev/null 2>&1 && echo '1' || echo '0')" == '%s' ]`, pkg, want))
	}
	return strings.Join(clauses, " && ")
}

// DpkgInstall appends one privileged dpkg -i per local package path.
func (s *Script) DpkgInstall(paths ...string) *Script {
	for _, path := range paths {
		s.exec("dpkg -i "+path, Sudo())
	}
	return s
}

// RemoteInstall downloads each package to a numbered temporary path,
// installs it and removes the download. Numbering restarts on every call.
func (s *Script) RemoteInstall(urls ...string) *Script {
	for i, url := range urls {
		tmp := fmt.Sprintf("%s-%03d.deb", s.tempPrefix, i+1)
		s.Curl(url, tmp, Sudo())
		s.DpkgInstall(tmp)
		s.exec("rm -f "+tmp, Sudo())
	}
	return s
}

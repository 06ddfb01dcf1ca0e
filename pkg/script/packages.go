package script

import (
	"strings"
)

// PackageOp is a package-manager operation.
type PackageOp int

const (
	// PackageInstall installs the named packages.
	PackageInstall PackageOp = iota
	// PackagePurge removes the named packages and their configuration.
	PackagePurge
	// PackageRemove removes the named packages.
	PackageRemove
	// PackageUpdate refreshes the package index.
	PackageUpdate
	// PackageUpgrade upgrades installed packages.
	PackageUpgrade
	// PackageDistUpgrade upgrades installed packages, allowing dependency changes.
	PackageDistUpgrade
)

// String returns the apt-get verb for the operation.
func (op PackageOp) String() string {
	switch op {
	case PackageInstall:
		return "install"
	case PackagePurge:
		return "purge"
	case PackageRemove:
		return "remove"
	case PackageUpdate:
		return "update"
	case PackageUpgrade:
		return "upgrade"
	case PackageDistUpgrade:
		return "dist-upgrade"
	default:
		return "unknown"
	}
}

// targeted reports whether the operation acts on named packages and is
// therefore subject to de-duplication.
func (op PackageOp) targeted() bool {
	return op == PackageInstall || op == PackagePurge || op == PackageRemove
}

// Install queues an apt-get install of names.
func (s *Script) Install(names ...string) *Script {
	return s.Package(PackageInstall, names...)
}

// Purge queues an apt-get purge of names.
func (s *Script) Purge(names ...string) *Script {
	return s.Package(PackagePurge, names...)
}

// Remove queues an apt-get remove of names.
func (s *Script) Remove(names ...string) *Script {
	return s.Package(PackageRemove, names...)
}

// Update queues an apt-get update.
func (s *Script) Update() *Script {
	return s.Package(PackageUpdate)
}

// Upgrade queues an apt-get upgrade.
func (s *Script) Upgrade() *Script {
	return s.Package(PackageUpgrade)
}

// DistUpgrade queues an apt-get dist-upgrade.
func (s *Script) DistUpgrade() *Script {
	return s.Package(PackageDistUpgrade)
}

// Package queues one non-interactive package-manager invocation.
// Names already queued for the same install/purge/remove verb are dropped;
// queueing a name for one of those verbs forgets it for the other two.
func (s *Script) Package(op PackageOp, names ...string) *Script {
	if op.targeted() {
		s.Setenv("DEBIAN_FRONTEND", "noninteractive")

		names = s.claimPackages(op, names)
		if len(names) == 0 {
			return s
		}
	}

	return s.exec(renderPackageOp(op, names), Sudo())
}

func (s *Script) claimPackages(op PackageOp, names []string) []string {
	seen := s.packages[op]
	if seen == nil {
		seen = make(map[string]bool)
		s.packages[op] = seen
	}

	fresh := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fresh = append(fresh, name)

		for other, set := range s.packages {
			if other != op {
				delete(set, name)
			}
		}
	}
	return fresh
}

func renderPackageOp(op PackageOp, names []string) string {
	parts := append([]string{"apt-get", op.String(), "-q", "-y"}, names...)
	return strings.Join(parts, " ")
}

// Package config loads the froyo-suite YAML configuration file.
//
// The file supplies connection defaults plus logging, tracing, metrics,
// history and executor settings:
//
//	connection:
//	  host: 10.0.0.5
//	  user: deploy
//	  identity: ~/.ssh/id_ed25519
//	  tags: [web]
//	logging:
//	  level: debug
//	executor:
//	  probe: dial
//	history:
//	  path: ~/.froyo/history.db
//
// Precedence is flags, then FROYO_* environment variables, then the file,
// then defaults. Flags are applied by the CLI; ApplyEnv handles the
// environment.
package config

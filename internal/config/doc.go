// Package config provides configuration management for mentorctl.
//
// Configuration is layered, with later sources overriding earlier ones key by
// key:
//
//  1. Default configuration (in-memory backend, backup and restore enabled)
//  2. User configuration (~/.config/mentorctl/config.yaml)
//  3. Project configuration (./.mentorctl/config.yaml)
//
// An explicit --config file replaces layers 2 and 3.
//
// # Configuration Structure
//
//	backend:
//	  type: redis            # memory | redis | kubernetes
//	  redis:
//	    url: redis://staging-redis:6379/2
//	    prefix: mentoring
//	  kubernetes:
//	    context: staging
//	    namespace: mentoring
//	run:
//	  enableBackup: true
//	  enableRestore: true
//	  delayBetweenTests: 250ms
//	  maxRetries: 2
//	server:
//	  host: 0.0.0.0
//	  port: 8090
//	suitesDir: suites
//
// Relative paths (suitesDir, backend.memory.seedFile) resolve against the
// directory of the file that sets them.
package config

// Package config loads lazyflow settings from an HCL file, applies
// environment overrides and validates the result.
//
// Example:
//
//	servant {
//	  mount             = "/tmp/lzy"
//	  host              = "0.0.0.0"
//	  port              = 8899
//	  server            = "http://servant:8899"
//	  poll_interval     = "100ms"
//	  execution_timeout = "10m"
//	  transport         = "socketio" # or "shell"
//	  shell_binary      = "lazyflow"
//	}
//
//	cache {
//	  path = "/var/lib/lazyflow/cache"
//	}
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	workers      = 4
//	metrics_port = 9090
package config

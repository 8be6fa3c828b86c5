// Package config provides configuration management for chunkpool.
//
// # Key Features
//
// - Config: one document for pool geometry, bench workload, logging and tracing
// - Environment variable substitution with ${VAR_NAME} syntax
// - Defaults via Default and typed validation errors via Validate
//
// # YAML Layout
//
//	pool:
//	  name: entities
//	  chunk_size: 64
//	  initial_chunks: 0
//	  max_chunks: 0
//	bench:
//	  objects: 10000
//	  rounds: 5
//	  release_ratio: 0.3
//	  tag_every: 100
//	  seed: 1
//	  workers: 1
//	logging:
//	  level: ${LOG_LEVEL}
//	  encoding: console
//	tracing:
//	  enabled: false
//	  service_name: chunkpool
//	  sample_rate: 1.0
//
// # Usage
//
//	cfg, err := config.LoadFile("chunkpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A non-positive pool chunk size is reported as an invalid_param error, the
// same error the pool constructor returns; workload mistakes are config
// errors.
package config

// Package config loads the collector configuration.
//
// Loading starts from Default, merges each file layer (JSON, or YAML for
// .yaml/.yml files), reads optional .env files, then applies environment
// overrides named FIELDSTREAMS_<SECTION>_<FIELD>:
//
//	loader := config.NewLoader()
//	loader.AddLayer("fieldstreams.yaml")
//	loader.AddDotEnv(".env")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//
// Duration fields accept Go duration strings such as "300s" or "9h". A layer
// only overrides the keys it contains; everything else keeps its default.
//
// Sections with an empty url (remote, nats, influx) disable that sink.
// metrics.port 0 disables the Prometheus endpoint.
package config

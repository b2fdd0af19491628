// Package config loads the Mosquitto monitor configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, a .env
// file in the working directory, then MOSQUITTO_MONITOR_* environment
// variables. Validate runs last and reports every problem at once.
//
// Broker passwords and InfluxDB tokens belong in the environment or the
// .env file rather than config.yaml.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.BrokerAddress())
package config

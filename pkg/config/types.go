package config

// Settings holds validated runtime defaults. Command line flags override
// every field here.
type Settings struct {
	SecurityGroup string
	Ports         []int
	AllICMP       bool
	StunServer    string
	StunPort      int
	LogFile       string
	KeepHistory   bool
	Backend       string
	OSCommand     string
}

// Config is the raw ini-mapped configuration file shape.
type Config struct {
	Rules struct {
		SecurityGroup string `ini:"security_group"`
		Ports         string `ini:"ports"`
		AllICMP       *bool  `ini:"all_icmp"`
	} `ini:"rules"`
	Stun struct {
		Server string `ini:"server"`
		Port   int    `ini:"port"`
	} `ini:"stun"`
	Log struct {
		File        string `ini:"file"`
		KeepHistory bool   `ini:"keep_history"`
	} `ini:"log"`
	Provider struct {
		Backend string `ini:"backend"`
		Command string `ini:"command"`
	} `ini:"provider"`
}

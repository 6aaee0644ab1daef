package config

// -----------------------------------------------------------------------------
// Embedded profiles
//
// Key: device name passed with -device
// Val: YAML layered over Default() and under the boot file
// -----------------------------------------------------------------------------

const cfgHost = `
node:
  name: devnode
sensors:
  - driver: sim
    id: SIMT
    kind: SIM
    measurand: temperature
    base: 21
    step: 0.1
  - driver: sim
    id: SIMH
    kind: SIM
    measurand: humidity
    base: 45
    step: 0.5
  - driver: sim
    id: SIMP
    kind: SIM
    measurand: pressure
    base: 1002
    step: 0.2
display:
  terminal: true
`

const cfgPi = `
sensors:
  - driver: shtc3
    bus: 1
  - driver: bme280
    bus: 1
    addr: 0x76
  - driver: aht20
    bus: 1
  - driver: analog
    channel: 0
`

var embeddedConfigs = map[string][]byte{
	"host": []byte(cfgHost),
	"pi":   []byte(cfgPi),
}

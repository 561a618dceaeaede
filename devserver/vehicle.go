package devserv

import (
	"log/slog"
	"strings"
	"sync"
)

// Responder answers a transcript with the assistant's reply.
type Responder interface {
	Respond(transcript string) string
}

// VehicleController is a simulated car. Transcripts that mention the
// lights, doors or engine drive its state; anything else is echoed back.
type VehicleController struct {
	mu          sync.Mutex
	lightsOn    bool
	doorsLocked bool
	engineOn    bool
}

// VehicleState is a snapshot of the simulated car.
type VehicleState struct {
	LightsOn    bool `json:"lightsOn"`
	DoorsLocked bool `json:"doorsLocked"`
	EngineOn    bool `json:"engineOn"`
}

func NewVehicleController() *VehicleController {
	return &VehicleController{}
}

func (v *VehicleController) State() VehicleState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VehicleState{LightsOn: v.lightsOn, DoorsLocked: v.doorsLocked, EngineOn: v.engineOn}
}

func (v *VehicleController) Respond(transcript string) string {
	command := strings.ToLower(strings.TrimSpace(transcript))
	switch {
	case command == "":
		return "I didn't catch that."
	case strings.Contains(command, "engine"):
		return v.ControlEngine(command)
	case strings.Contains(command, "door") || strings.Contains(command, "lock"):
		return v.ControlDoors(command)
	case strings.Contains(command, "light"):
		return v.ControlLights(command)
	}
	return "You said: " + strings.TrimSpace(transcript)
}

func (v *VehicleController) ControlLights(command string) string {
	command = strings.ToLower(command)

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case strings.Contains(command, "on"):
		if v.lightsOn {
			slog.Info("Vehicle lights are already ON")
			return "Vehicle lights are already on"
		}
		v.lightsOn = true
		slog.Info("Vehicle lights turned ON")
		return "Vehicle lights have been turned on"
	case strings.Contains(command, "off"):
		if !v.lightsOn {
			slog.Info("Vehicle lights are already OFF")
			return "Vehicle lights are already off"
		}
		v.lightsOn = false
		slog.Info("Vehicle lights turned OFF")
		return "Vehicle lights have been turned off"
	}
	return "Invalid lights command"
}

func (v *VehicleController) ControlDoors(command string) string {
	command = strings.ToLower(command)

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case strings.Contains(command, "unlock"):
		if !v.doorsLocked {
			slog.Info("Vehicle doors are already UNLOCKED")
			return "All doors are already unlocked"
		}
		v.doorsLocked = false
		slog.Info("Vehicle doors UNLOCKED")
		return "All doors have been unlocked"
	case strings.Contains(command, "lock"):
		if v.doorsLocked {
			slog.Info("Vehicle doors are already LOCKED")
			return "All doors are already locked"
		}
		v.doorsLocked = true
		slog.Info("Vehicle doors LOCKED")
		return "All doors have been locked"
	}
	return "Invalid door command"
}

// ControlEngine refuses to start while the doors are unlocked.
func (v *VehicleController) ControlEngine(command string) string {
	command = strings.ToLower(command)

	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case strings.Contains(command, "start"):
		if v.engineOn {
			slog.Info("Engine is already RUNNING")
			return "Engine is already running"
		}
		if !v.doorsLocked {
			slog.Warn("Cannot start engine: Doors must be locked first")
			return "Please lock the doors before starting the engine"
		}
		v.engineOn = true
		slog.Info("Engine STARTED")
		return "Engine has been started"
	case strings.Contains(command, "stop") || strings.Contains(command, "off"):
		if !v.engineOn {
			slog.Info("Engine is already STOPPED")
			return "Engine is already stopped"
		}
		v.engineOn = false
		slog.Info("Engine STOPPED")
		return "Engine has been stopped"
	}
	return "Invalid engine command"
}

package cmd

import (
	"fmt"

	"github.com/df07/go-wgpu-pathtracer/pkg/config"
	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/device/webgpu"
)

// openDevice creates the compute device named in the render config
func openDevice(name string) (device.Device, error) {
	switch name {
	case config.DeviceSoftware:
		logger.Info("using the software compute device")
		return device.NewSoftware(), nil
	case config.DeviceWebGPU:
		dev, err := webgpu.New()
		if err != nil {
			return nil, fmt.Errorf("open webgpu device: %w", err)
		}
		logger.Info("using the webgpu compute device")
		return dev, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDevice, name)
	}
}

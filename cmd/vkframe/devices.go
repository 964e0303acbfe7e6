package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkframe/gpu"
	"github.com/andewx/vkframe/gpu/vkgpu"
)

func newDevicesCmd(root *rootOptions) *cobra.Command {
	var extensions bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List physical devices and their queue families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			log, closer, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
				return errors.Wrap(err, "vulkan loader")
			}
			if err := vk.Init(); err != nil {
				return errors.Wrap(err, "vulkan init")
			}
			icfg, err := instanceConfig(cfg, log, nil)
			if err != nil {
				return err
			}
			inst, err := vkgpu.NewInstance(icfg)
			if err != nil {
				return err
			}
			defer inst.Destroy()
			return listDevices(cmd.OutOrStdout(), inst, extensions)
		},
	}
	cmd.Flags().BoolVar(&extensions, "extensions", false, "also list device extensions")
	return cmd
}

func listDevices(w io.Writer, inst *vkgpu.Instance, extensions bool) error {
	pds, err := inst.PhysicalDevices()
	if err != nil {
		return err
	}
	for n, pd := range pds {
		info := inst.DeviceInfo(pd)
		v := info.APIVersion
		fmt.Fprintf(w, "%d: %s (%s, vulkan %d.%d.%d)\n", n, info.Name, info.Type, v>>22, (v>>12)&0x3ff, v&0xfff)
		for i, f := range inst.QueueFamilies(pd) {
			fmt.Fprintf(w, "\tqueue family %d: %d queues, %s\n", i, f.Count, queueFlags(f.Flags))
		}
		if !extensions {
			continue
		}
		names, err := inst.DeviceExtensions(pd)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintf(w, "\t%s\n", name)
		}
	}
	return nil
}

func queueFlags(f gpu.QueueFlags) string {
	var names []string
	if f&gpu.QueueGraphics != 0 {
		names = append(names, "graphics")
	}
	if f&gpu.QueueCompute != 0 {
		names = append(names, "compute")
	}
	if f&gpu.QueueTransfer != 0 {
		names = append(names, "transfer")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

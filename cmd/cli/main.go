package main

import (
	"fmt"
	"os"

	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/assignments"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/auth"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/devices"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/root"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/schedules"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	schedules.InitSchedules(rootCmd)
	assignments.InitAssignments(rootCmd)
	devices.InitDevices(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

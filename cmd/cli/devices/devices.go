package devices

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/config"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/output"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/spf13/cobra"
)

// ==========================
// Init Devices
// ==========================
func InitDevices(rootCmd *cobra.Command) {

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect enrolled devices",
	}

	devicesCmd.AddCommand(listDevicesCmd())
	rootCmd.AddCommand(devicesCmd)
}

// ==========================
// LIST
// ==========================
func listDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			req, _ := http.NewRequest("GET", config.APIURL()+"/devices", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}

			var devices []models.Device
			if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
				return err
			}

			rows := make([][]interface{}, 0, len(devices))
			for _, d := range devices {
				lat, lon := "", ""
				if d.Latitude != nil {
					lat = *d.Latitude
				}
				if d.Longitude != nil {
					lon = *d.Longitude
				}
				rows = append(rows, []interface{}{d.ID, d.Name, d.SerialNumber, d.LastSeenAt, lat, lon})
			}
			output.RenderTable([]string{"ID", "Name", "Serial", "Last Seen", "Lat", "Lon"}, rows)
			return nil
		},
	}
}

package assignments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/config"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/output"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/spf13/cobra"
)

// ==========================
// Init Assignments
// ==========================
func InitAssignments(rootCmd *cobra.Command) {

	assignmentsCmd := &cobra.Command{
		Use:   "assignments",
		Short: "Manage temporary profile assignments",
	}

	assignmentsCmd.AddCommand(
		listAssignmentsCmd(),
		createAssignmentCmd(),
		cancelAssignmentCmd(),
	)

	rootCmd.AddCommand(assignmentsCmd)
}

// ==========================
// LIST
// ==========================
func listAssignmentsCmd() *cobra.Command {
	var status string
	var deviceID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			url := config.APIURL() + "/assignments"
			sep := "?"
			if status != "" {
				url += sep + "status=" + status
				sep = "&"
			}
			if deviceID > 0 {
				url += fmt.Sprintf("%sdevice_id=%d", sep, deviceID)
			}

			req, _ := http.NewRequest("GET", url, nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}

			var assignments []models.Assignment
			if err := json.NewDecoder(resp.Body).Decode(&assignments); err != nil {
				return err
			}

			rows := make([][]interface{}, 0, len(assignments))
			for _, a := range assignments {
				rows = append(rows, []interface{}{
					a.ID.String(), a.ProfileID, a.DeviceID, a.Status,
					a.RemoveAt.Format(time.RFC3339), a.Error,
				})
			}
			output.RenderTable(
				[]string{"ID", "Profile", "Device", "Status", "Remove At", "Error"},
				rows,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&deviceID, "device", 0, "filter by device id")
	return cmd
}

// ==========================
// CREATE
// ==========================
func createAssignmentCmd() *cobra.Command {
	var profileID int
	var deviceID int
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Install a profile on a device temporarily",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			payload := map[string]interface{}{
				"profile_id": profileID,
				"device_id":  deviceID,
				"remove_at":  time.Now().Add(duration).Format(time.RFC3339),
			}
			body, _ := json.Marshal(payload)

			req, _ := http.NewRequest("POST", config.APIURL()+"/assignments", bytes.NewBuffer(body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			var out any
			json.NewDecoder(resp.Body).Decode(&out)
			b, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(b))
			return nil
		},
	}

	cmd.Flags().IntVar(&profileID, "profile", 0, "profile id to install")
	cmd.Flags().IntVar(&deviceID, "device", 0, "target device id")
	cmd.Flags().DurationVar(&duration, "for", time.Hour, "how long the profile stays installed")

	return cmd
}

// ==========================
// CANCEL
// ==========================
func cancelAssignmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel an assignment and remove its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			req, _ := http.NewRequest("POST", config.APIURL()+"/assignments/"+args[0]+"/cancel", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("failed to cancel assignment: status %d", resp.StatusCode)
			}

			fmt.Println("Assignment cancelled")
			return nil
		},
	}
}

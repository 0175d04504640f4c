package schedules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/config"
	"github.com/epaproditus/geo-profile-dashboard/cmd/cli/output"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/spf13/cobra"
)

// ==========================
// Init Schedules
// ==========================
func InitSchedules(rootCmd *cobra.Command) {

	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage profile push schedules",
	}

	schedulesCmd.AddCommand(
		listSchedulesCmd(),
		createScheduleCmd(),
		enableScheduleCmd(),
		deleteScheduleCmd(),
		runSchedulesCmd(),
	)

	rootCmd.AddCommand(schedulesCmd)
}

// ==========================
// LIST
// ==========================
func listSchedulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			req, _ := http.NewRequest("GET", config.APIURL()+"/schedules", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}

			var schedules []models.Schedule
			if err := json.NewDecoder(resp.Body).Decode(&schedules); err != nil {
				return err
			}

			rows := make([][]interface{}, 0, len(schedules))
			for _, s := range schedules {
				pattern := ""
				if s.RecurrencePattern != nil {
					pattern = *s.RecurrencePattern
				}
				last := ""
				if s.LastExecutedAt != nil {
					last = s.LastExecutedAt.Format(time.RFC3339)
				}
				rows = append(rows, []interface{}{
					s.ID, s.Name, s.ProfileID, s.ScheduleType, pattern,
					s.StartTime.Format(time.RFC3339), s.Enabled, last,
				})
			}
			output.RenderTable(
				[]string{"ID", "Name", "Profile", "Type", "Pattern", "Start", "Enabled", "Last Executed"},
				rows,
			)
			return nil
		},
	}
}

// ==========================
// CREATE
// ==========================
func createScheduleCmd() *cobra.Command {

	var name string
	var profileID int
	var scheduleType string
	var startTime string
	var pattern string
	var days []int
	var filter string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			payload := map[string]interface{}{
				"name":          name,
				"profile_id":    profileID,
				"schedule_type": scheduleType,
				"start_time":    startTime,
				"enabled":       true,
			}
			if pattern != "" {
				payload["recurrence_pattern"] = pattern
			}
			if len(days) > 0 {
				payload["recurrence_days"] = days
			}
			if filter != "" {
				payload["device_filter"] = filter
			}

			body, _ := json.Marshal(payload)
			req, _ := http.NewRequest("POST", config.APIURL()+"/schedules", bytes.NewBuffer(body))
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

	cmd.Flags().StringVar(&name, "name", "", "schedule name")
	cmd.Flags().IntVar(&profileID, "profile", 0, "profile id to push")
	cmd.Flags().StringVar(&scheduleType, "type", models.ScheduleTypeOneTime, "one_time or recurring")
	cmd.Flags().StringVar(&startTime, "start", "", "start time, RFC3339")
	cmd.Flags().StringVar(&pattern, "pattern", "", "daily, weekly or monthly")
	cmd.Flags().IntSliceVar(&days, "days", nil, "weekday numbers 0-6 for weekly schedules")
	cmd.Flags().StringVar(&filter, "filter", "", "device filter JSON")

	return cmd
}

// ==========================
// ENABLE / DISABLE
// ==========================
func enableScheduleCmd() *cobra.Command {
	var enabled bool

	cmd := &cobra.Command{
		Use:   "enable [id]",
		Short: "Enable or disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			body, _ := json.Marshal(map[string]bool{"enabled": enabled})
			req, _ := http.NewRequest("PATCH", config.APIURL()+"/schedules/"+args[0]+"/enabled", bytes.NewBuffer(body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			fmt.Printf("Schedule %s enabled=%s\n", args[0], strconv.FormatBool(enabled))
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", true, "desired enabled state")
	return cmd
}

// ==========================
// DELETE
// ==========================
func deleteScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return fmt.Errorf("please login first")
			}

			req, _ := http.NewRequest("DELETE", config.APIURL()+"/schedules/"+args[0], nil)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNoContent {
				fmt.Println("Schedule deleted")
				return nil
			}
			return fmt.Errorf("failed to delete schedule: status %d", resp.StatusCode)
		},
	}
}

// ==========================
// RUN (trigger the executor)
// ==========================
func runSchedulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Trigger execution of due schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _ := http.NewRequest("POST", config.APIURL()+"/schedules/execute", nil)
			if key := config.ExecuteAPIKey(); key != "" {
				req.Header.Set("X-API-Key", key)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}

			var out any
			json.NewDecoder(resp.Body).Decode(&out)
			b, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(b))
			return nil
		},
	}
}

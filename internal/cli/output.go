package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jrsteele09/go-task-client/tasks"
	"github.com/jrsteele09/go-task-client/users"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(w io.Writer, list []tasks.Task, directory users.Directory) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDUE\tOWNER\tTITLE")
	for _, t := range list {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.String()
		}
		owner := t.User
		if t.AssignedUserID != nil && len(directory) > 0 {
			owner = directory.Lookup(*t.AssignedUserID)
		}
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, due, owner, t.Title)
	}
	return tw.Flush()
}

func printTask(w io.Writer, t *tasks.Task) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", t.Description)
	}
	fmt.Fprintf(tw, "Status:\t%s\n", t.Status)
	if t.DueDate != nil {
		fmt.Fprintf(tw, "Due:\t%s\n", t.DueDate)
	}
	if t.User != "" {
		fmt.Fprintf(tw, "Owner:\t%s\n", t.User)
	}
	return tw.Flush()
}

func printUsers(w io.Writer, list []users.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tSUPERUSER")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%t\n", u.ID, u.Username, u.IsSuperuser)
	}
	return tw.Flush()
}

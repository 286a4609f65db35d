package pub

import "fmt"

// Topic identifies a broker topic within a project.
type Topic struct {
	ProjectID string
	Name      string
}

// Path is the topic's resource path, relative to the API base URL.
func (t Topic) Path() string {
	return fmt.Sprintf("projects/%s/topics/%s", t.ProjectID, t.Name)
}

func (t Topic) String() string {
	return t.Path()
}

// BaseURL is the versioned API root of the broker at host.
func BaseURL(host string) string {
	return fmt.Sprintf("%s/v1", host)
}

// PublishURL is the endpoint batches for topic are posted to.
func PublishURL(host string, topic Topic) string {
	return fmt.Sprintf("%s/%s:publish", BaseURL(host), topic.Path())
}

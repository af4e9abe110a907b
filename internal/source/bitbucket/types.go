package bitbucket

type page[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

type account struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

func (a account) name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Nickname
}

type link struct {
	Href string `json:"href"`
}

type branchRef struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
}

type participant struct {
	User     account `json:"user"`
	Role     string  `json:"role"`
	Approved bool    `json:"approved"`
}

type pullRequest struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	State        string        `json:"state"`
	Author       account       `json:"author"`
	CreatedOn    string        `json:"created_on"`
	UpdatedOn    string        `json:"updated_on"`
	Source       branchRef     `json:"source"`
	Destination  branchRef     `json:"destination"`
	Participants []participant `json:"participants"`
	Links        struct {
		Commits  link `json:"commits"`
		Comments link `json:"comments"`
		DiffStat link `json:"diffstat"`
	} `json:"links"`
}

type commit struct {
	Hash   string `json:"hash"`
	Author struct {
		Raw  string  `json:"raw"`
		User account `json:"user"`
	} `json:"author"`
}

type comment struct {
	ID   int64   `json:"id"`
	User account `json:"user"`
}

type diffStat struct {
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	Status       string `json:"status"`
	New          *struct {
		Path string `json:"path"`
	} `json:"new"`
	Old *struct {
		Path string `json:"path"`
	} `json:"old"`
}

func (d diffStat) path() string {
	if d.New != nil {
		return d.New.Path
	}
	if d.Old != nil {
		return d.Old.Path
	}
	return ""
}
